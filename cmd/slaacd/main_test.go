package main

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEUI64IID(t *testing.T) {
	hwAddr, err := net.ParseMAC("02:00:11:22:33:44")
	require.NoError(t, err)

	iid, err := eui64IID(hwAddr)
	require.NoError(t, err)

	// The universal/local bit of the first byte is flipped, and 0xFFFE is
	// inserted between the OUI and the rest of the address.
	assert.Equal(t, [8]byte{0x00, 0x00, 0x11, 0xFF, 0xFE, 0x22, 0x33, 0x44}, iid)
}

func TestEUI64IID_WrongLength(t *testing.T) {
	_, err := eui64IID(net.HardwareAddr{0x00, 0x11, 0x22})
	assert.Error(t, err)
}
