package repository

import (
	"database/sql"
	"fmt"
	"strings"
)

// setBuilder assembles the SET clause of a partial UPDATE.
type setBuilder struct {
	columns []string
	args    []interface{}
}

func newSetBuilder() *setBuilder {
	return &setBuilder{}
}

func (b *setBuilder) add(column string, value interface{}) {
	b.args = append(b.args, value)
	b.columns = append(b.columns, fmt.Sprintf("%s = $%d", column, len(b.args)))
}

// setIf adds the column only when the caller supplied a value.
func setIf[T any](b *setBuilder, column string, value *T) {
	if value != nil {
		b.add(column, *value)
	}
}

func (b *setBuilder) empty() bool {
	return len(b.columns) == 0
}

func (b *setBuilder) build(table, id string) (string, []interface{}) {
	args := append(append([]interface{}{}, b.args...), id)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(b.columns, ", "), len(args))
	return query, args
}

// requireAffected turns a no-op write into sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(term string) string {
	return likeEscaper.Replace(strings.TrimSpace(term))
}
