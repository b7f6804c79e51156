package store

import (
	"context"
	"fmt"
	"strings"

	"leadgen-engine/internal/domain"
)

const companyCols = `id, name, linkedin_url, company_domain, metadata, location`

func scanCompany(s scanner) (domain.Company, error) {
	var c domain.Company
	if err := s.Scan(&c.ID, &c.Name, &c.ProfileURL, &c.Domain, &c.Metadata, &c.Location); err != nil {
		return domain.Company{}, classify(err)
	}
	return c, nil
}

func (d *DB) FindCompany(ctx context.Context, f Field, v any) (domain.Company, error) {
	tail, args, err := Query{Where: f, Value: v, Limit: 1}.sql(tableCompanies)
	if err != nil {
		return domain.Company{}, err
	}
	c, err := scanCompany(d.queryRow(ctx, `SELECT `+companyCols+` FROM companies`+tail, args...))
	if err != nil {
		return domain.Company{}, fmt.Errorf("find company by %s: %w", f, err)
	}
	return c, nil
}

func (d *DB) InsertCompany(ctx context.Context, c domain.Company) (int64, error) {
	meta := strings.TrimSpace(c.Metadata)
	if meta == "" {
		meta = "{}"
	}
	id, err := d.insertID(ctx, `
INSERT INTO companies (name, linkedin_url, company_domain, metadata, location)
VALUES (?, ?, ?, ?, ?)
RETURNING id;`,
		c.Name, c.ProfileURL, c.Domain, meta, c.Location,
	)
	if err != nil {
		return 0, fmt.Errorf("insert company %q: %w", c.ProfileURL, err)
	}
	return id, nil
}

func (d *DB) UpdateCompany(ctx context.Context, id int64, p Patch) error {
	return d.update(ctx, tableCompanies, id, p)
}

func (d *DB) SelectCompanies(ctx context.Context, q Query) ([]domain.Company, error) {
	tail, args, err := q.sql(tableCompanies)
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, `SELECT `+companyCols+` FROM companies`+tail, args...)
	if err != nil {
		return nil, fmt.Errorf("select companies: %w", err)
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, classify(rows.Err())
}

// update applies p to the row with the given id. An empty patch is a no-op;
// a missing row is ErrNotFound.
func (d *DB) update(ctx context.Context, table string, id int64, p Patch) error {
	set, args, err := p.sql(table)
	if err != nil {
		return err
	}
	if set == "" {
		return nil
	}
	args = append(args, id)

	res, err := d.exec(ctx, `UPDATE `+table+` SET `+set+` WHERE id = ?;`, args...)
	if err != nil {
		return fmt.Errorf("update %s %d: %w", table, id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s %d: %w", table, id, domain.ErrNotFound)
	}
	return nil
}
