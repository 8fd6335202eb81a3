package command

import (
	"context"
	"strings"

	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RollRequest is a one-off roll typed by a user, such as "2d6+3@Damage".
type RollRequest struct {
	Locale   string
	UserName string
	Input    string
}

// DirectRoll evaluates one expression without a button message or any
// stored record. Evaluation failures become the answer body; blank input
// is a configuration error.
func (e *Engine) DirectRoll(ctx context.Context, req RollRequest) (*chat.Answer, error) {
	_, span := e.tracer.Start(ctx, "command.DirectRoll")
	defer span.End()

	expression, label, _ := strings.Cut(req.Input, labelSeparator)
	expression, label = strings.TrimSpace(expression), strings.TrimSpace(label)
	if expression == "" {
		return nil, configError("expression is required", nil)
	}
	span.SetAttributes(attribute.String("dicebot.expression", expression))

	var answer *chat.Answer
	result, err := e.evaluator.Evaluate(expression, 0)
	if err != nil {
		span.AddEvent("evaluation failed", trace.WithAttributes(attribute.String("error", err.Error())))
		answer = e.evaluationFailure(req.Locale, expression, label, err)
	} else {
		answer = e.render.resultAnswer(req.Locale, result, label, 0)
	}
	answer.Author = req.UserName
	return answer, nil
}

// HelpText returns the usage summary of the slash commands.
func (e *Engine) HelpText(locale string) string {
	return e.render.Help(locale)
}
