package minidb

import (
	"fmt"
	"strings"
)

type StatementKind int

const (
	CreateTable StatementKind = iota + 1
	Insert
	Select
)

func (s StatementKind) String() string {
	switch s {
	case CreateTable:
		return "CREATE TABLE"
	case Insert:
		return "INSERT"
	case Select:
		return "SELECT"
	default:
		return "UNKNOWN"
	}
}

type Statement struct {
	Kind    StatementKind
	Columns []Column
	Values  []string
}

// PrepareStatement tokenizes the input on whitespace and maps it onto
// one of the supported statement forms:
//
//	create <column type> ...
//	insert <value> ...
//	select
func PrepareStatement(input string) (Statement, error) {
	tokens := strings.Fields(input)
	if len(tokens) == 0 {
		return Statement{}, fmt.Errorf("empty statement")
	}

	switch tokens[0] {
	case "create":
		if len(tokens) < 2 {
			return Statement{}, fmt.Errorf("create statement needs at least one column")
		}
		columns := make([]Column, 0, len(tokens)-1)
		for _, token := range tokens[1:] {
			aColumn, err := ParseColumn(token)
			if err != nil {
				return Statement{}, err
			}
			columns = append(columns, aColumn)
		}
		return Statement{Kind: CreateTable, Columns: columns}, nil
	case "insert":
		if len(tokens) < 2 {
			return Statement{}, fmt.Errorf("insert statement needs at least one value")
		}
		return Statement{Kind: Insert, Values: tokens[1:]}, nil
	case "select":
		return Statement{Kind: Select}, nil
	default:
		return Statement{}, fmt.Errorf("unrecognized keyword at start of %q", input)
	}
}
