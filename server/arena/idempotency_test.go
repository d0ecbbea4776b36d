package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTags_RejectsUnknownTag(t *testing.T) {
	err := ValidateTags([]string{"fun"}, []string{"not_a_real_tag"})
	require.ErrorIs(t, err, ErrInvalidTag)
}

func TestValidateTags_AcceptsVocabulary(t *testing.T) {
	err := ValidateTags([]string{"fun", "creative"}, []string{"too_hard"})
	require.NoError(t, err)
}

func TestPayloadHash_InvariantUnderTagPermutationAndDuplicates(t *testing.T) {
	h1, err := PayloadHash("btl_1", "sess_1", ResultLeft, []string{"fun", "creative"}, []string{"unfair"}, map[string]any{"fps": 60.0, "device": "desktop"})
	require.NoError(t, err)

	h2, err := PayloadHash("btl_1", "sess_1", ResultLeft, []string{"creative", "fun", "fun"}, []string{"unfair"}, map[string]any{"device": "desktop", "fps": 60.0})
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestPayloadHash_DiffersOnResultChange(t *testing.T) {
	h1, err := PayloadHash("btl_1", "sess_1", ResultLeft, nil, nil, nil)
	require.NoError(t, err)
	h2, err := PayloadHash("btl_1", "sess_1", ResultRight, nil, nil, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
