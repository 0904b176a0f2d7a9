package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateField(t *testing.T) {
	assert.True(t, ValidateField(Field{ID: "a", Kind: TextInput{}}))
	assert.True(t, ValidateField(Field{ID: "a", Label: "", Kind: ImageUpload{}}))
	assert.False(t, ValidateField(Field{Kind: TextInput{}}))
	assert.False(t, ValidateField(Field{ID: "a", Kind: Unknown{Name: "signature"}}))
}

func TestValidateForPublish(t *testing.T) {
	require.NoError(t, ValidateForPublish(Form{}))
	require.NoError(t, ValidateForPublish(Form{
		{ID: "a", Label: "Name", Kind: TextInput{}},
		{ID: "b", Label: "Level", Kind: MultipleChoice{Options: []string{"", "Beginner"}}},
	}))

	err := ValidateForPublish(Form{
		{ID: "a", Label: "Name", Kind: TextInput{}},
		{ID: "b", Label: "  ", Kind: Textarea{}},
		{ID: "c", Label: "Level", Kind: MultipleChoice{Options: []string{""}}},
		{ID: "d", Label: "Sign", Kind: Unknown{Name: "signature"}},
	})
	var problems Problems
	require.ErrorAs(t, err, &problems)
	require.Len(t, problems, 3)
	assert.Equal(t, 1, problems[0].Index)
	assert.Equal(t, "label is required", problems[0].Message)
	assert.Equal(t, "c", problems[1].FieldID)
	assert.Equal(t, 3, problems[2].Index)
	assert.Contains(t, err.Error(), "field 2: label is required")
}
