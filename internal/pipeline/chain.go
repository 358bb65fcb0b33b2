package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/theirongolddev/dbchat/internal/logging"
)

// Prompt is the context shared by both model calls. SQL and Result are
// filled only for narration.
type Prompt struct {
	Question string
	Schema   string
	History  []Message
	SQL      string
	Result   string
}

// Translator turns a question into one SQL query.
type Translator interface {
	Translate(ctx context.Context, p Prompt) (string, error)
}

// Narrator turns a query result into a natural-language answer.
type Narrator interface {
	Narrate(ctx context.Context, p Prompt) (string, error)
}

// DefaultMaxRows bounds the result text handed to the narrator.
const DefaultMaxRows = 50

// ErrEmptySQL is returned when the translator produced no query.
var ErrEmptySQL = errors.New("pipeline: translator returned empty SQL")

// Chain is the question -> SQL -> execute -> narrate pipeline.
type Chain struct {
	translator Translator
	narrator   Narrator
	logger     *slog.Logger
	maxRows    int
}

// NewChain wires a translator and narrator. A nil logger discards output.
func NewChain(t Translator, n Narrator, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Chain{translator: t, narrator: n, logger: logger, maxRows: DefaultMaxRows}
}

// Answer runs the full chain. A failing query is returned with the SQL that caused it.
func (c *Chain) Answer(ctx context.Context, req Request) (Response, error) {
	schema, err := req.DB.DescribeSchema(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("describing schema: %w", err)
	}

	p := Prompt{Question: req.Question, Schema: schema, History: req.History}
	sql, err := c.translator.Translate(ctx, p)
	if err != nil {
		return Response{}, fmt.Errorf("translating question: %w", err)
	}
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return Response{}, ErrEmptySQL
	}
	c.logger.Debug("translated question", slog.String("sql", sql))

	res, err := req.DB.Run(ctx, sql)
	if err != nil {
		return Response{SQL: sql}, err
	}

	p.SQL = sql
	p.Result = FormatResult(res, c.maxRows)
	answer, err := c.narrator.Narrate(ctx, p)
	if err != nil {
		return Response{SQL: sql}, fmt.Errorf("narrating result: %w", err)
	}
	return Response{Answer: strings.TrimSpace(answer), SQL: sql}, nil
}
