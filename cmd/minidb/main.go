package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"minidb/internal/minidb"
	"minidb/internal/pkg/logging"
)

const (
	cliName string = "minidb"
)

func printPrompt() {
	fmt.Print(cliName, "> ")
}

// Values are case sensitive so statement input is only trimmed, meta
// commands get lowercased separately in doMetaCommand.
func sanitizeReplInput(input string) string {
	return strings.TrimSpace(input)
}

type metaCommand int

const (
	Unknown metaCommand = iota + 1
	Help
	Exit
	Save
	Clear
)

func isMetaCommand(inputBuffer string) bool {
	return len(inputBuffer) > 0 && inputBuffer[:1] == "."
}

func doMetaCommand(inputBuffer string) metaCommand {
	switch strings.ToLower(inputBuffer) {
	case "help":
		return Help
	case "exit":
		return Exit
	case "save":
		return Save
	case "clear":
		return Clear
	default:
		return Unknown
	}
}

const defaultDbFileName = "db"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logger, err := logging.NewLogger(level)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // flushes buffer, if any

	dbFileName := defaultDbFileName
	if len(os.Args) > 1 {
		dbFileName = os.Args[1]
	}
	dbFile, err := os.OpenFile(dbFileName, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		panic(err)
	}

	aPager, err := minidb.NewPager(dbFile, minidb.PageSize, minidb.DefaultMaxPages)
	if err != nil {
		panic(err)
	}
	aTable, err := minidb.Open(ctx, logger, aPager)
	if err != nil {
		panic(err)
	}
	defer aTable.Close()

	reader := bufio.NewScanner(os.Stdin)
	printPrompt()

	// REPL (Read-eval-print loop) start
	for reader.Scan() {
		inputBuffer := sanitizeReplInput(reader.Text())
		if inputBuffer == "" {
			printPrompt()
			continue
		}

		if isMetaCommand(inputBuffer) {
			switch doMetaCommand(inputBuffer[1:]) {
			case Help:
				fmt.Println(".help   - Show available commands")
				fmt.Println(".save   - Write the schema and all pages to the database file")
				fmt.Println(".clear  - Drop the schema and all rows")
				fmt.Println(".exit   - Save and close the program")
			case Exit:
				if err := aTable.Save(ctx); err != nil {
					fmt.Printf("Error: %s\n", err)
				}
				// Return exits with code 0 by default, os.Exit(0)
				// would exit immediately without any defers
				return
			case Save:
				if err := aTable.Save(ctx); err != nil {
					fmt.Printf("Error: %s\n", err)
				} else {
					fmt.Println("Saved.")
				}
			case Clear:
				if err := aTable.Clear(ctx); err != nil {
					fmt.Printf("Error: %s\n", err)
				} else {
					fmt.Println("Cleared.")
				}
			case Unknown:
				fmt.Printf("Unrecognized meta command: %s\n", inputBuffer)
			}
		} else {
			stmt, err := minidb.PrepareStatement(inputBuffer)
			if err != nil {
				fmt.Printf("Error: %s\n", err)
			} else if err := executeStatement(ctx, aTable, stmt); err != nil {
				fmt.Printf("Error: %s\n", err)
			}
		}
		printPrompt()
	}
	// Print an additional line if we encountered an EOF character
	fmt.Println()
}

func executeStatement(ctx context.Context, aTable *minidb.Table, stmt minidb.Statement) error {
	switch stmt.Kind {
	case minidb.CreateTable:
		aTable.SetSchema(stmt.Columns)
		fmt.Println("Table created.")
	case minidb.Insert:
		if err := aTable.Insert(ctx, stmt.Values); err != nil {
			return err
		}
		fmt.Println("Inserted 1 row.")
	case minidb.Select:
		rows, err := aTable.SelectAll(ctx)
		if err != nil {
			return err
		}
		for _, aRow := range rows {
			fmt.Println(aRow)
		}
	}
	return nil
}
