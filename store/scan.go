package store

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ScanInput defines parameters for scanning the document table.
type ScanInput struct {
	// Projection lists the attributes to return. Dotted names select nested
	// attributes ("ratings.numVotes"). Empty returns whole documents.
	Projection []string

	// Filter is an optional server-side filter.
	Filter *expression.ConditionBuilder

	// Limit is the maximum number of items evaluated per page (0 = no limit).
	Limit int32

	// AllPages follows LastEvaluatedKey until the table is exhausted. When
	// false only the first page is read.
	AllPages bool
}

// Equal returns the condition attr = value.
func Equal(attr string, value any) expression.ConditionBuilder {
	return expression.Name(attr).Equal(expression.Value(value))
}

// Between returns the inclusive range condition attr BETWEEN low AND high.
func Between(attr string, low, high any) expression.ConditionBuilder {
	return expression.Name(attr).Between(expression.Value(low), expression.Value(high))
}

// All joins conditions with AND. It returns nil when conds is empty.
func All(conds ...expression.ConditionBuilder) *expression.ConditionBuilder {
	switch len(conds) {
	case 0:
		return nil
	case 1:
		return &conds[0]
	}
	c := expression.And(conds[0], conds[1], conds[2:]...)
	return &c
}

// build converts the input to a ScanInput for table.
func (in ScanInput) build(table string) (*dynamodb.ScanInput, error) {
	input := &dynamodb.ScanInput{TableName: aws.String(table)}
	if in.Limit > 0 {
		input.Limit = aws.Int32(in.Limit)
	}
	if len(in.Projection) == 0 && in.Filter == nil {
		return input, nil
	}

	builder := expression.NewBuilder()
	if len(in.Projection) > 0 {
		names := make([]expression.NameBuilder, 0, len(in.Projection)-1)
		for _, p := range in.Projection[1:] {
			names = append(names, expression.Name(p))
		}
		builder = builder.WithProjection(expression.NamesList(expression.Name(in.Projection[0]), names...))
	}
	if in.Filter != nil {
		builder = builder.WithFilter(*in.Filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build scan expression: %w", err)
	}
	input.ExpressionAttributeNames = expr.Names()
	input.ExpressionAttributeValues = expr.Values()
	input.ProjectionExpression = expr.Projection()
	input.FilterExpression = expr.Filter()
	return input, nil
}
