package settlement

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestShouldSettleLocally(t *testing.T) {
	assert.False(t, ShouldSettleLocally(false, "https://facilitator.example.org"))
	assert.False(t, ShouldSettleLocally(true, "https://facilitator.daydreams.systems"))
	assert.False(t, ShouldSettleLocally(true, "https://verify.daydreams.systems"))
	assert.True(t, ShouldSettleLocally(true, "https://facilitator.example.org"))
}

func TestIsManagedFacilitator(t *testing.T) {
	assert.True(t, IsManagedFacilitator("https://facilitator.daydreams.systems"))
	assert.True(t, IsManagedFacilitator("https://verify.daydreams.systems"))
	assert.True(t, IsManagedFacilitator("https://daydreams.systems"))
	assert.True(t, IsManagedFacilitator("https://x402.org/facilitator"))
	assert.False(t, IsManagedFacilitator("https://selfhosted.example.org"))
	assert.False(t, IsManagedFacilitator("https://notdaydreams.systems.example.org"))
	assert.False(t, IsManagedFacilitator("::bad::url"))
}

func TestNewBroadcasterValidatesKey(t *testing.T) {
	asset := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")

	_, err := NewBroadcaster("https://sepolia.base.org", 84532, asset, "0xnotakey", nil)
	assert.Error(t, err)

	_, err = NewBroadcaster("https://sepolia.base.org", 84532, asset, "abcd", nil)
	assert.Error(t, err)

	b, err := NewBroadcaster("https://sepolia.base.org", 84532, asset, "0x"+testKeyHex, nil)
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, b.RelayerAddress())
}
