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
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bemafred/rdfq/engine"
)

// jsonTerm and resultsEnvelope mirror the wire shape package federation
// decodes on the way in, so printSelect emits exactly the SPARQL 1.1 Query
// Results JSON Format spec.md §6 describes for SERVICE responses.
type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

type resultsEnvelope struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

func toJSONTerm(t engine.Term) jsonTerm {
	return jsonTerm{Type: t.Kind, Value: t.Value, Datatype: t.Datatype, Lang: t.Language}
}

func printSelect(ctx context.Context, w io.Writer, rows engine.Rows) error {
	var env resultsEnvelope
	for {
		row, ok, err := rows.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		binding := make(map[string]jsonTerm, len(row))
		for name, t := range row {
			binding[name] = toJSONTerm(t)
		}
		env.Results.Bindings = append(env.Results.Bindings, binding)
	}
	env.Head.Vars = rows.Variables()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

func printAsk(w io.Writer, ok bool) error {
	doc := struct {
		Head    struct{} `json:"head"`
		Boolean bool     `json:"boolean"`
	}{Boolean: ok}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func printTriples(w io.Writer, triples []engine.Triple) error {
	for _, t := range triples {
		if _, err := fmt.Fprintf(w, "%s %s %s .\n", ntriplesTerm(t.S), ntriplesTerm(t.P), ntriplesTerm(t.O)); err != nil {
			return err
		}
	}
	return nil
}

func ntriplesTerm(t engine.Term) string {
	switch t.Kind {
	case "iri":
		return "<" + t.Value + ">"
	case "bnode":
		return "_:" + t.Value
	default:
		s := `"` + t.Value + `"`
		switch {
		case t.Language != "":
			return s + "@" + t.Language
		case t.Datatype != "":
			return s + "^^<" + t.Datatype + ">"
		default:
			return s
		}
	}
}
