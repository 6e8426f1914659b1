package users

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"go.uber.org/zap"
)

// BulkResult counts created accounts and lists "Row N: ..." messages.
type BulkResult struct {
	Success int      `json:"success"`
	Errors  []string `json:"errors"`
}

// BulkImport creates one account per row of an email,password,full_name,role CSV.
// Rows fail independently; a blank role means auditor.
func (s *Service) BulkImport(ctx context.Context, r io.Reader) (BulkResult, error) {
	const op = "users.bulk_import"
	result := BulkResult{Errors: []string{}}

	session, err := auth.Require(ctx, op, auth.CanManageUsers)
	if err != nil {
		return result, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil || len(records) == 0 {
		if err == nil {
			err = errors.New("no header row")
		}
		result.Errors = append(result.Errors, "Failed to parse CSV")
		return result, domain.ParseError(op, err)
	}

	cols := map[string]int{}
	for i, h := range records[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, ok := cols[h]; !ok {
			cols[h] = i
		}
	}
	get := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	rowNum := 1
	for _, row := range records[1:] {
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		rowNum++

		in := NewUser{
			Email:    get(row, "email"),
			Password: get(row, "password"),
			FullName: get(row, "full_name"),
			Role:     domain.Role(strings.ToLower(get(row, "role"))),
		}
		if in.Email == "" || in.Password == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Email and password are required", rowNum))
			continue
		}
		if in.Role == "" {
			in.Role = domain.RoleAuditor
		}
		if !auth.CanAssignRole(session.Role, in.Role) {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: Only Super Admins can create admin users", rowNum))
			continue
		}
		if _, err := s.CreateUser(ctx, in); err != nil {
			s.logger.Warn("bulk user row failed", zap.Int("row", rowNum), zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %s", rowNum, rowMessage(err)))
			continue
		}
		result.Success++
	}

	s.logger.Info("bulk user import finished",
		zap.Int("created", result.Success),
		zap.Int("errors", len(result.Errors)),
		zap.String("actor", session.UserID.String()),
	)
	return result, nil
}

func rowMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.UserMessage()
	}
	return err.Error()
}
