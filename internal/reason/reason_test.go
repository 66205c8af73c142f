package reason

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsLimitWaitBand(t *testing.T) {
	assert.True(t, IsLimitWait(WaitQOSGrpCPU), "band start should be a limit wait")
	assert.True(t, IsLimitWait(WaitAssocMaxSubJob), "band end should be a limit wait")
	assert.False(t, IsLimitWait(NoReason), "NoReason is not a limit wait")
	assert.False(t, IsLimitWait(FailTimeout), "terminal codes are not limit waits")
}

func TestStringUnknownCode(t *testing.T) {
	assert.Equal(t, "WAIT_UNKNOWN", Code(9999).String())
}

func TestStringKnownCode(t *testing.T) {
	assert.Equal(t, "WAIT_QOS_GRP_CPU", WaitQOSGrpCPU.String())
}
