// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	queryLoadSources []string
	queryLoadGraph   string
)

var queryCmd = &cobra.Command{
	Use:   "query [flags] <query-text-or-@file>",
	Short: "run a SELECT, ASK, CONSTRUCT, or DESCRIBE query",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	fs := queryCmd.Flags()
	fs.StringArrayVar(&queryLoadSources, "load", nil, "RDF document to load before running the query (repeatable)")
	fs.StringVar(&queryLoadGraph, "into", "", "graph IRI to load --load sources into (default graph if unset)")
}

func runQuery(cmd *cobra.Command, args []string) error {
	text, err := readArg(args[0])
	if err != nil {
		return err
	}
	e, err := newEngine(cmd)
	if err != nil {
		return err
	}
	if err := loadSources(e, queryLoadSources, queryLoadGraph); err != nil {
		return err
	}

	switch queryForm(text) {
	case "select":
		rows, err := e.Select(rootCtx, text)
		if err != nil {
			return err
		}
		defer rows.Close()
		return printSelect(rootCtx, os.Stdout, rows)
	case "ask":
		ok, err := e.Ask(rootCtx, text)
		if err != nil {
			return err
		}
		return printAsk(os.Stdout, ok)
	case "construct":
		triples, err := e.Construct(rootCtx, text)
		if err != nil {
			return err
		}
		return printTriples(os.Stdout, triples)
	case "describe":
		triples, err := e.Describe(rootCtx, text)
		if err != nil {
			return err
		}
		return printTriples(os.Stdout, triples)
	default:
		return fmt.Errorf("rdfq: query does not start with SELECT/ASK/CONSTRUCT/DESCRIBE")
	}
}

// queryForm sniffs the query form from its leading keyword, skipping PREFIX
// and BASE declarations and comments, since the engine's Select/Ask/
// Construct/Describe entry points each require the matching form up front.
func queryForm(text string) string {
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "PREFIX"), strings.HasPrefix(upper, "BASE"):
			continue
		case strings.HasPrefix(upper, "SELECT"):
			return "select"
		case strings.HasPrefix(upper, "ASK"):
			return "ask"
		case strings.HasPrefix(upper, "CONSTRUCT"):
			return "construct"
		case strings.HasPrefix(upper, "DESCRIBE"):
			return "describe"
		default:
			return ""
		}
	}
	return ""
}
