package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"leadgen-engine/internal/domain"
)

// Field is a column name usable in a one-predicate lookup or a patch.
type Field string

const (
	FieldID            Field = "id"
	FieldName          Field = "name"
	FieldProfileURL    Field = "linkedin_url"
	FieldCompanyDomain Field = "company_domain"
	FieldMetadata      Field = "metadata"
	FieldLocation      Field = "location"

	FieldEmail      Field = "email"
	FieldEmailCount Field = "email_count"
	FieldLastEmail  Field = "last_email"
	FieldFirstEmail Field = "first_email"
	FieldStatus     Field = "status"

	FieldCompanyID   Field = "company_id"
	FieldRecruiterID Field = "recruiter_id"
	FieldCreatedAt   Field = "created_at"

	FieldJobID     Field = "job_id"
	FieldMessageID Field = "message_id"
	FieldEmailType Field = "email_type"
	FieldSentAt    Field = "sent_at"
)

const (
	tableCompanies  = "companies"
	tableRecruiters = "recruiters"
	tableJobs       = "linkedin_jobs"
	tableEmailLog   = "email_log"
)

// whitelist of columns per table (prevents SQL injection)
var columns = map[string]map[Field]bool{
	tableCompanies: {
		FieldID: true, FieldName: true, FieldProfileURL: true,
		FieldCompanyDomain: true, FieldMetadata: true, FieldLocation: true,
	},
	tableRecruiters: {
		FieldID: true, FieldName: true, FieldProfileURL: true, FieldCompanyDomain: true,
		FieldEmail: true, FieldEmailCount: true, FieldLastEmail: true,
		FieldFirstEmail: true, FieldStatus: true,
	},
	tableJobs: {
		FieldID: true, FieldCompanyID: true, FieldRecruiterID: true, FieldCreatedAt: true,
	},
	tableEmailLog: {
		FieldID: true, FieldRecruiterID: true, FieldJobID: true, FieldMessageID: true,
		FieldEmailType: true, FieldStatus: true, FieldSentAt: true,
	},
}

// Patch is a set of column assignments for an update by id.
type Patch map[Field]any

// Query selects rows by at most one equality predicate. An empty Where
// selects every row; a nil Value matches NULL.
type Query struct {
	Where   Field
	Value   any
	OrderBy Field
	Desc    bool
	Limit   int
}

func checkField(table string, f Field) error {
	if !columns[table][f] {
		return fmt.Errorf("%s: unknown column %q", table, f)
	}
	return nil
}

// sql renders the WHERE/ORDER BY/LIMIT tail for q.
func (q Query) sql(table string) (string, []any, error) {
	var b strings.Builder
	var args []any

	if q.Where != "" {
		if err := checkField(table, q.Where); err != nil {
			return "", nil, err
		}
		v := sqlArg(q.Value)
		if v == nil {
			fmt.Fprintf(&b, " WHERE %s IS NULL", q.Where)
		} else {
			fmt.Fprintf(&b, " WHERE %s = ?", q.Where)
			args = append(args, v)
		}
	}

	order := q.OrderBy
	if order == "" {
		order = FieldID
	}
	if err := checkField(table, order); err != nil {
		return "", nil, err
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	fmt.Fprintf(&b, " ORDER BY %s %s", order, dir)

	if q.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, q.Limit)
	}
	return b.String(), args, nil
}

// sql renders "a = ?, b = ?" for p in column order.
func (p Patch) sql(table string) (string, []any, error) {
	if len(p) == 0 {
		return "", nil, nil
	}
	keys := make([]string, 0, len(p))
	for f := range p {
		if f == FieldID {
			return "", nil, fmt.Errorf("%s: id is immutable", table)
		}
		if err := checkField(table, f); err != nil {
			return "", nil, err
		}
		keys = append(keys, string(f))
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" = ?")
		args = append(args, sqlArg(p[Field(k)]))
	}
	return strings.Join(parts, ", "), args, nil
}

// sqlArg converts domain values into driver values. Timestamps are stored
// as RFC3339 UTC text in both dialects.
func sqlArg(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return formatTime(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return formatTime(*x)
	case *int64:
		if x == nil {
			return nil
		}
		return *x
	case *string:
		if x == nil {
			return nil
		}
		return *x
	case domain.RecruiterStatus:
		return string(x)
	case domain.EmailStatus:
		return string(x)
	case domain.EmailType:
		return string(x)
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
