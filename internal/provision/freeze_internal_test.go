package provision

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFreeze(t *testing.T) {
	t.Parallel()

	installed := parseFreeze("# comment\nPandas==2.1.4\nscikit_learn==1.4.0\n\nnot-a-pin\n")
	require.Equal(t, "2.1.4", installed["pandas"])
	require.Equal(t, "1.4.0", installed["scikit-learn"])
	require.NotContains(t, installed, "not-a-pin")
}
