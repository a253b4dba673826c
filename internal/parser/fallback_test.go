package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groceryflow/groceryflow/internal/models"
)

func TestParseBasicEndToEndPhrase(t *testing.T) {
	p := NewWithModels(nil, nil)

	result, err := p.ParseText(context.Background(), "bought 2 litres milk and 3 eggs")
	require.NoError(t, err)
	assert.True(t, result.UsedFallback)
	assert.True(t, result.NeedsReview)
	assert.Contains(t, result.Warnings, BasicParserWarning)
	require.Len(t, result.Items, 2)

	milk := result.Items[0]
	assert.Equal(t, "milk", milk.Name)
	assert.Equal(t, 2.0, milk.Quantity)
	assert.Equal(t, models.ActionAdd, milk.Action)
	require.NotNil(t, milk.Unit)
	assert.Equal(t, "litres", *milk.Unit)

	eggs := result.Items[1]
	assert.Equal(t, "eggs", eggs.Name)
	assert.Equal(t, 3.0, eggs.Quantity)
	assert.Equal(t, models.ActionAdd, eggs.Action, "verb carries forward across segments")
}

func TestParseBasicVerbs(t *testing.T) {
	p := NewWithModels(nil, nil)
	ctx := context.Background()

	tests := []struct {
		text       string
		wantName   string
		wantQty    float64
		wantAction string
	}{
		{"used 1 litre milk", "milk", 1, models.ActionSubtract},
		{"ate 3 eggs", "eggs", 3, models.ActionSubtract},
		{"have 4 apples", "apples", 4, models.ActionSet},
		{"picked up 2 bags rice", "rice", 2, models.ActionAdd},
		{"bought grapes", "grapes", 1, models.ActionAdd},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			result, err := p.ParseText(ctx, tt.text)
			require.NoError(t, err)
			require.Len(t, result.Items, 1)
			item := result.Items[0]
			assert.Equal(t, tt.wantName, item.Name)
			assert.Equal(t, tt.wantQty, item.Quantity)
			assert.Equal(t, tt.wantAction, item.Action)
		})
	}
}

func TestParseBasicIgnoresNoise(t *testing.T) {
	p := NewWithModels(nil, nil)

	result, err := p.ParseText(context.Background(), "hello there; bought 2 apples")
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "apples", result.Items[0].Name)
}

func TestNarrativeFromItems(t *testing.T) {
	litre := "litres"
	items := []*models.ProposedUpdate{
		{Name: "milk", Quantity: 2, Action: models.ActionAdd, Unit: &litre},
		{Name: "eggs", Quantity: 3, Action: models.ActionSubtract},
		{Name: "apples", Quantity: 4, Action: models.ActionSet},
	}
	assert.Equal(t, "bought 2 litres milk\nused 3 eggs\nhave 4 apples", NarrativeFromItems(items))
}
