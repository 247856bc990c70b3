package pgorders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMappingFilters_Predicate_empty(t *testing.T) {
	where, args := MappingFilters{}.Predicate()
	require.Empty(t, where)
	require.Empty(t, args)

	// "all" is the UI's explicit no-filter value.
	where, args = MappingFilters{Classification: "all"}.Predicate()
	require.Empty(t, where)
	require.Empty(t, args)
}

func TestMappingFilters_Predicate_classification(t *testing.T) {
	where, args := MappingFilters{Classification: "gift"}.Predicate()
	require.Equal(t, "WHERE m.classification = $1", where)
	require.Equal(t, []any{"gift"}, args)
}

func TestMappingFilters_Predicate_dateRange(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)

	where, args := MappingFilters{DateFrom: &from, DateTo: &to}.Predicate()
	require.Equal(t, "WHERE m.created_at >= $1 AND m.created_at <= $2", where)
	require.Equal(t, []any{from, to}, args)
}

func TestMappingFilters_Predicate_searchReusesOnePlaceholder(t *testing.T) {
	where, args := MappingFilters{Search: "smith"}.Predicate()
	require.Len(t, args, 1)
	require.Equal(t, "%smith%", args[0])
	require.Contains(t, where, "f.recipient_name ILIKE $1")
	require.Contains(t, where, "s.customer_name ILIKE $1")
	require.NotContains(t, where, "$2")
}

func TestMappingFilters_Predicate_searchInputStaysOutOfSQL(t *testing.T) {
	where, args := MappingFilters{Search: "'; DROP TABLE order_mappings; --"}.Predicate()
	require.NotContains(t, where, "DROP TABLE")
	require.Equal(t, "%'; DROP TABLE order_mappings; --%", args[0])
}

func TestMappingFilters_Predicate_combined(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	where, args := MappingFilters{
		Classification: "normal",
		DateFrom:       &from,
		Search:         "PF-9",
	}.Predicate()
	require.Len(t, args, 3)
	require.Contains(t, where, "m.classification = $1")
	require.Contains(t, where, "m.created_at >= $2")
	require.Contains(t, where, "ILIKE $3")
}
