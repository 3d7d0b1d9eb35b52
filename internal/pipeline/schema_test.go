package pipeline

import (
	"errors"
	"testing"

	"github.com/carlmjohnson/be"

	"findash/internal/core"
)

func TestDetectColumnsSynonymsAndFirstWins(t *testing.T) {
	header := []string{"Posted Date", "Description", "Category", "Transaction Type", "Amount ($)", "Date2", "Notes"}
	cols := DetectColumns(header, TransactionRules)
	be.Equal(t, 0, cols[core.FieldDate])
	be.Equal(t, 1, cols[core.FieldTitle])
	be.Equal(t, 2, cols[core.FieldCategory])
	be.Equal(t, 3, cols[core.FieldType])
	be.Equal(t, 4, cols[core.FieldAmount])
	be.Equal(t, 5, len(cols))
}

func TestDetectColumnsTypoTolerance(t *testing.T) {
	cols := DetectColumns([]string{"Datee", "Catgory", "Typ", "Amout"}, TransactionRules)
	be.True(t, cols.Has(core.FieldDate))
	be.True(t, cols.Has(core.FieldCategory))
	be.True(t, cols.Has(core.FieldAmount))
	// "Typ" is too short for fuzzy matching.
	be.False(t, cols.Has(core.FieldType))
}

func TestNormalizeTransactionsMissingColumns(t *testing.T) {
	_, err := NormalizeTransactions(table("tx", []string{"Date", "Notes", "Amount"}), DefaultPolicy())
	var mc *core.MissingColumnsError
	be.True(t, errors.As(err, &mc))
	be.True(t, errors.Is(err, core.ErrMissingColumns))
	be.AllEqual(t, []core.Field{core.FieldTitle, core.FieldCategory, core.FieldType}, mc.Fields)
}

func TestNormalizeTransactionsTitleOptional(t *testing.T) {
	cols, err := NormalizeTransactions(table("tx", []string{"Month", "Category", "Type", "Amount"}), DefaultPolicy())
	be.NilErr(t, err)
	be.False(t, cols.Has(core.FieldTitle))
}

func TestPositionalStrategy(t *testing.T) {
	p := DefaultPolicy()
	p.Strategy = StrategyPositional
	cols, err := NormalizeTransactions(table("tx", []string{"a", "b", "c", "d", "e"}), p)
	be.NilErr(t, err)
	be.Equal(t, 0, cols[core.FieldDate])
	be.Equal(t, 1, cols[core.FieldCategory])
	be.Equal(t, 3, cols[core.FieldAmount])

	_, err = NormalizeTransactions(table("tx", []string{"a", "b"}), p)
	var mc *core.MissingColumnsError
	be.True(t, errors.As(err, &mc))
	be.AllEqual(t, []core.Field{core.FieldType, core.FieldAmount}, mc.Fields)
}

func TestNormalizeMappingModes(t *testing.T) {
	p := DefaultPolicy()

	_, mode, err := NormalizeMapping(table("map", []string{"Category", "Category Group"}), p)
	be.NilErr(t, err)
	be.Equal(t, MappingCategory, mode)

	_, mode, err = NormalizeMapping(table("map", []string{"Title", "Category"}), p)
	be.NilErr(t, err)
	be.Equal(t, MappingTitle, mode)

	cols, mode, err := NormalizeMapping(table("map", []string{"Title", "CategoryGroup"}), p)
	be.NilErr(t, err)
	be.Equal(t, MappingCategory, mode)
	be.Equal(t, 0, cols[core.FieldCategory])

	p.MappingMode = MappingTitle
	_, _, err = NormalizeMapping(table("map", []string{"Name", "Notes"}), p)
	var mc *core.MissingColumnsError
	be.True(t, errors.As(err, &mc))
	be.AllEqual(t, []core.Field{core.FieldCategory}, mc.Fields)
}
