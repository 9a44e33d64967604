// Package migrations embeds all SQL migration files so the binary is
// self-contained and does not depend on its working directory.
package migrations

import "embed"

// FS contains all *.sql migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS

// Schema returns the concatenated migration SQL in lexical order.
func Schema() (string, error) {
	entries, err := FS.ReadDir(".")
	if err != nil {
		return "", err
	}
	var sql string
	for _, e := range entries {
		b, err := FS.ReadFile(e.Name())
		if err != nil {
			return "", err
		}
		sql += string(b) + "\n"
	}
	return sql, nil
}
