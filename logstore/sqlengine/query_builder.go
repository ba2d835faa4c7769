package sqlengine

import (
	"errors"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/xef5000/UltimateLogger/logstore"
)

func (s *Store) buildSelectPageQuery(filter logstore.Filter, limit, offset uint) (sqlQueryString, error) {
	selectStmt := s.dialect.builder().
		From(s.tableName).
		Select(colID, colLogType, colTimestamp, colIsArchived, colExpiresAt, colData).
		Where(s.filterExpression(filter)).
		Order(goqu.I(colID).Desc()).
		Limit(limit).
		Offset(offset)

	return toSQL(selectStmt.ToSQL())
}

func (s *Store) buildSelectByIDQuery(id int64) (sqlQueryString, error) {
	selectStmt := s.dialect.builder().
		From(s.tableName).
		Select(colID, colLogType, colTimestamp, colIsArchived, colExpiresAt, colData).
		Where(goqu.C(colID).Eq(id))

	return toSQL(selectStmt.ToSQL())
}

func (s *Store) buildSelectDistinctTypesQuery() (sqlQueryString, error) {
	selectStmt := s.dialect.builder().
		From(s.tableName).
		Select(colLogType).
		Distinct().
		Order(goqu.I(colLogType).Asc())

	return toSQL(selectStmt.ToSQL())
}

func (s *Store) buildInsertQuery(record logstore.Record, payloadJSON []byte) (sqlQueryString, error) {
	var expiresAt any
	if record.ExpiresAt != nil {
		expiresAt = logstore.ToEpochMillis(*record.ExpiresAt)
	}

	insertStmt := s.dialect.builder().
		Insert(s.tableName).
		Rows(goqu.Record{
			colLogType:    record.Type,
			colTimestamp:  logstore.ToEpochMillis(record.Timestamp),
			colIsArchived: record.Archived,
			colExpiresAt:  expiresAt,
			colData:       string(payloadJSON),
		})

	if s.dialect.returningID {
		insertStmt = insertStmt.Returning(colID)
	}

	return toSQL(insertStmt.ToSQL())
}

func (s *Store) buildSetArchivedQuery(id int64, archived bool, expiresAt *int64) (sqlQueryString, error) {
	var expires any
	if expiresAt != nil {
		expires = *expiresAt
	}

	updateStmt := s.dialect.builder().
		Update(s.tableName).
		Set(goqu.Record{colIsArchived: archived, colExpiresAt: expires}).
		Where(goqu.C(colID).Eq(id))

	return toSQL(updateStmt.ToSQL())
}

func (s *Store) buildDeleteByIDQuery(id int64) (sqlQueryString, error) {
	deleteStmt := s.dialect.builder().
		Delete(s.tableName).
		Where(goqu.C(colID).Eq(id))

	return toSQL(deleteStmt.ToSQL())
}

func (s *Store) buildDeleteMatchingQuery(filter logstore.Filter) (sqlQueryString, error) {
	deleteStmt := s.dialect.builder().
		Delete(s.tableName).
		Where(s.filterExpression(filter))

	return toSQL(deleteStmt.ToSQL())
}

func (s *Store) buildDeleteExpiredQuery(nowMillis int64) (sqlQueryString, error) {
	deleteStmt := s.dialect.builder().
		Delete(s.tableName).
		Where(
			goqu.C(colIsArchived).Eq(false),
			goqu.C(colExpiresAt).IsNotNull(),
			goqu.C(colExpiresAt).Lt(nowMillis),
		)

	return toSQL(deleteStmt.ToSQL())
}

// filterExpression translates a filter into (type) AND (and-group) AND (or-group).
// Conditions with a comparator outside the whitelist are dropped here, before any
// of their content reaches the builder.
func (s *Store) filterExpression(filter logstore.Filter) exp.ExpressionList {
	expressions := make([]exp.Expression, 0, 3)

	if filter.Type() != "" {
		expressions = append(expressions, goqu.C(colLogType).Eq(filter.Type()))
	}

	andGroup, orGroup := logstore.PartitionConditions(filter.Conditions())

	andExpressions := s.conditionExpressions(andGroup)
	if len(andExpressions) > 0 {
		expressions = append(expressions, goqu.And(andExpressions...))
	}

	orExpressions := s.conditionExpressions(orGroup)
	if len(orExpressions) > 0 {
		expressions = append(expressions, goqu.Or(orExpressions...))
	}

	return goqu.And(expressions...)
}

// narrowsSelection reports whether filterExpression yields a WHERE clause that restricts anything.
func narrowsSelection(filter logstore.Filter) bool {
	if filter.Type() != "" {
		return true
	}

	for _, condition := range filter.Conditions() {
		if condition.Comparator.IsValid() {
			return true
		}
	}

	return false
}

func (s *Store) conditionExpressions(conditions []logstore.Condition) []exp.Expression {
	expressions := make([]exp.Expression, 0, len(conditions))

	for _, condition := range conditions {
		if !condition.Comparator.IsValid() {
			s.logDroppedCondition(condition)
			continue
		}

		expressions = append(expressions, s.conditionExpression(condition))
	}

	return expressions
}

func (s *Store) conditionExpression(c logstore.Condition) exp.Expression {
	if c.Comparator.IsOrdering() {
		number, ok := logstore.ParseNumber(c.Value)
		if !ok {
			// a non-numeric operand never matches
			return goqu.L("1 = 0")
		}

		field := s.dialect.numberField(s.tableName, c.Key)

		switch c.Comparator {
		case logstore.GreaterThan:
			return field.Gt(number)
		case logstore.LessThan:
			return field.Lt(number)
		case logstore.GreaterOrEqual:
			return field.Gte(number)
		default:
			return field.Lte(number)
		}
	}

	field := s.dialect.textField(s.tableName, c.Key)

	switch c.Comparator {
	case logstore.Equal:
		return field.Eq(c.Value)
	case logstore.NotEqual:
		return field.Neq(c.Value)
	case logstore.StartsWith:
		return goqu.L("substr(?, 1, length(?)) = ?", field, c.Value, c.Value)
	case logstore.EndsWith:
		return goqu.L("length(?) >= length(?) AND substr(?, length(?) - length(?) + 1) = ?",
			field, c.Value, field, field, c.Value, c.Value)
	default:
		return s.dialect.contains(field, c.Value)
	}
}

func toSQL(sqlQuery string, _ []any, toSQLErr error) (sqlQueryString, error) {
	if toSQLErr != nil {
		return "", errors.Join(logstore.ErrBuildingQueryFailed, toSQLErr)
	}

	return sqlQuery, nil
}
