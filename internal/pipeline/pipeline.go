// Package pipeline answers chat questions against a loaded database.
//
// The default Stub returns an empty answer. Chain translates the question
// into SQL, runs it and narrates the result through pluggable model calls.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/theirongolddev/dbchat/internal/database"
)

// Querier is the slice of a database handle the pipeline needs.
type Querier interface {
	Run(ctx context.Context, stmt string) (database.Result, error)
	DescribeSchema(ctx context.Context) (string, error)
}

// Message is one prior chat turn handed to the pipeline.
type Message struct {
	Role    string
	Content string
}

// Request carries a question with its context.
type Request struct {
	Question string
	History  []Message
	DB       Querier
}

// Response is the pipeline's answer. SQL is empty when no query ran.
type Response struct {
	Answer string
	SQL    string
}

// Pipeline produces an answer for one chat turn.
type Pipeline interface {
	Answer(ctx context.Context, req Request) (Response, error)
}

// Stub answers every question with an empty string.
type Stub struct{}

func (Stub) Answer(context.Context, Request) (Response, error) {
	return Response{}, nil
}

// Func adapts a plain function to Pipeline.
type Func func(ctx context.Context, req Request) (Response, error)

func (f Func) Answer(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// FormatResult renders a statement result as tab-separated text for a model prompt,
// keeping at most maxRows rows. maxRows <= 0 keeps everything.
func FormatResult(res database.Result, maxRows int) string {
	if !res.HasRows() {
		return fmt.Sprintf("%d rows affected", res.RowsAffected)
	}

	var b strings.Builder
	b.WriteString(strings.Join(res.Columns, "\t"))
	for i, row := range res.Rows {
		if maxRows > 0 && i == maxRows {
			fmt.Fprintf(&b, "\n... %d more rows", len(res.Rows)-maxRows)
			break
		}
		b.WriteByte('\n')
		for j, v := range row {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(database.FormatValue(v))
		}
	}
	return b.String()
}
