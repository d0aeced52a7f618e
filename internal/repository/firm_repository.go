package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// FirmSource lists the firms a refresh job walks through. The order must be
// stable between calls because the job cursor is an index into it.
type FirmSource interface {
	FirmNames(ctx context.Context) ([]string, error)
}

// StaticFirms serves a fixed list, typically from configuration.
type StaticFirms []string

func (s StaticFirms) FirmNames(ctx context.Context) ([]string, error) {
	return s, nil
}

// FirmRepository reads the firm list from the CRM database.
type FirmRepository struct {
	db *sql.DB
}

func NewFirmRepository(db *sql.DB) *FirmRepository {
	return &FirmRepository{db: db}
}

func (r *FirmRepository) FirmNames(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name
		FROM pe_firm
		WHERE name <> ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query firms: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan firm: %w", err)
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read firms: %w", err)
	}

	return names, nil
}
