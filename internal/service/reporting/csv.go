package reporting

import (
	"strings"

	"github.com/starland/ledger/internal/domain/models"
)

// EncodeCSV renders the header line and one line per row, each terminated by a newline.
func EncodeCSV(t Table) []byte {
	var b strings.Builder
	writeLine(&b, t.Headers)
	for _, cells := range t.Cells() {
		writeLine(&b, cells)
	}
	return []byte(b.String())
}

func writeLine(b *strings.Builder, cells []string) {
	for i, c := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escape(c))
	}
	b.WriteByte('\n')
}

func escape(value string) string {
	if !strings.ContainsAny(value, ",\"\n\r") {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

var auditHeaders = []string{"Timestamp", "User", "Action", "Module", "Details", "IP Address", "Status"}

// EncodeAuditCSV renders audit entries with every field quoted. Quotes inside values are dropped.
func EncodeAuditCSV(entries []models.AuditEntry) []byte {
	var b strings.Builder
	b.WriteString(strings.Join(auditHeaders, ","))
	b.WriteByte('\n')
	for _, e := range entries {
		fields := []string{
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.User, e.Action, e.Module, e.Details, e.IPAddress, e.Status,
		}
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(`"` + strings.ReplaceAll(f, `"`, "") + `"`)
		}
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
