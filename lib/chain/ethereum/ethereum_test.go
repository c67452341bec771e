package ethereum

import (
	"testing"

	"github.com/openwalletd/nftd/lib/chain/types"
)

// TestParseTokenID tests the token id parsing only, as the other functions
// are direct calls to the node through ethcli or the bound contract caller.
func TestParseTokenID(t *testing.T) {
	var ts []interface{} = []interface{}{
		// input, expected decimal string, expect error
		[]interface{}{"1", "1", false},
		[]interface{}{"123456789012345678901234567890", "123456789012345678901234567890", false},
		[]interface{}{"0x0a", "10", false},
		[]interface{}{"0XFF", "255", false},
		[]interface{}{"nope", "", true},
		[]interface{}{"0xzz", "", true},
		[]interface{}{"", "", true},
	}
	for _, s := range ts {
		id, err := parseTokenID(s.([]interface{})[0].(string))
		if (err != nil) != s.([]interface{})[2].(bool) {
			t.Errorf("parseTokenID error at %+v: %v", s, err)

			continue
		}
		if err != nil {
			if err != types.ErrBadTokenID {
				t.Errorf("expected ErrBadTokenID for %+v, got %v", s, err)
			}

			continue
		}
		if id.String() != s.([]interface{})[1].(string) {
			t.Errorf("parseTokenID %+v got %s", s, id.String())
		}
	}
}
