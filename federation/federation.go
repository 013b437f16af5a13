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

// Package federation implements the SERVICE clause's HTTP half: it
// wraps a remote SPARQL protocol endpoint behind the exec.ServiceCall
// callback shape, so exec and plan never import net/http directly.
// Retries follow the teacher's sync.Pool/backoff idiom used for
// retrying cloud object store requests; here it's an exponential
// backoff around a single remote endpoint instead of S3.
package federation

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bemafred/rdfq/exec"
	"github.com/bemafred/rdfq/expr"
)

// Client dispatches SERVICE clauses to remote SPARQL 1.1 protocol
// endpoints over HTTP, decoding the standard SPARQL Results JSON format.
type Client struct {
	HTTP    *http.Client
	Retry   backoff.BackOff
	Timeout time.Duration
}

// New returns a Client with a sane default retry policy: up to 4
// attempts with jittered exponential backoff, capped at a few seconds
// total, appropriate for a federated query waiting on another SPARQL
// endpoint rather than a bulk data transfer.
func New() *Client {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 5 * time.Second
	return &Client{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Retry:   backoff.WithMaxRetries(b, 3),
		Timeout: 10 * time.Second,
	}
}

// Call implements exec.ServiceCall: it issues a GET for
// `SELECT * WHERE { pattern }` against endpoint (preserving any query
// parameters already present in the endpoint URI, per the SERVICE
// federation contract) and decodes the response's solution sequence
// back into exec.Row values.
func (c *Client) Call(ctx context.Context, endpoint expr.Term, pattern string, outer exec.Row) ([]exec.Row, error) {
	iri, ok := endpoint.(expr.IRI)
	if !ok {
		return nil, errors.Errorf("federation: SERVICE endpoint must be an IRI, got %T", endpoint)
	}
	query := "SELECT * WHERE " + pattern

	var rows []exec.Row
	correlationID := uuid.NewString()
	op := func() error {
		resp, err := c.get(ctx, string(iri), query, correlationID)
		if err != nil {
			return err
		}
		rows, err = decodeResults(resp)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(c.Retry, ctx)); err != nil {
		return nil, errors.Wrapf(err, "federation: SERVICE %s", iri)
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, endpoint, query, correlationID string) (*resultsDoc, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "federation: parse SERVICE endpoint"))
	}
	q := u.Query()
	q.Set("query", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/sparql-results+json")
	req.Header.Set("X-Correlation-Id", correlationID)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err // transient network error: retryable
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		return nil, errors.Errorf("federation: endpoint returned %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return nil, backoff.Permanent(errors.Errorf("federation: endpoint returned %s", resp.Status))
	}
	var doc resultsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, backoff.Permanent(errors.Wrap(err, "federation: decode SPARQL results JSON"))
	}
	return &doc, nil
}

// resultsDoc mirrors the W3C SPARQL 1.1 Query Results JSON Format.
type resultsDoc struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]binding `json:"bindings"`
	} `json:"results"`
	Boolean *bool `json:"boolean,omitempty"`
}

type binding struct {
	Type     string `json:"type"` // "uri", "literal", "bnode"
	Value    string `json:"value"`
	Lang     string `json:"xml:lang,omitempty"`
	Datatype string `json:"datatype,omitempty"`
}

func decodeResults(doc *resultsDoc) ([]exec.Row, error) {
	rows := make([]exec.Row, 0, len(doc.Results.Bindings))
	for _, b := range doc.Results.Bindings {
		row := exec.NewRow()
		for name, val := range b {
			t, err := decodeBinding(val)
			if err != nil {
				return nil, err
			}
			row = row.Bind(expr.NewVar(name), t)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeBinding(b binding) (expr.Term, error) {
	switch b.Type {
	case "uri":
		return expr.IRI(b.Value), nil
	case "bnode":
		return expr.BlankNode(b.Value), nil
	case "literal", "typed-literal":
		return expr.Literal{Lexical: b.Value, Lang: b.Lang, Datatype: b.Datatype}, nil
	default:
		return nil, errors.Errorf("federation: unknown binding type %q", b.Type)
	}
}
