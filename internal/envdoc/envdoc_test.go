package envdoc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	d, err := Decode(strings.NewReader(`{"cloudfrontUrl":"https://d111.cloudfront.net","downloadS3Lambda":"https://abc.lambda-url.ap-northeast-1.on.aws/"}`))
	require.NoError(t, err)

	assert.Equal(t, "https://d111.cloudfront.net", d.BaseURL())
	assert.NoError(t, d.Validate())
	assert.False(t, d.IsPlaceholder())
}

func TestDecode_BucketVariant(t *testing.T) {
	d, err := Decode(strings.NewReader(`{"bucketUrl":"https://bucket.s3.amazonaws.com","bucketName":"bucket","downloadS3Lambda":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.s3.amazonaws.com", d.BaseURL())
	assert.Equal(t, "bucket", d.BucketName)
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"cloudfrontUrl":`))
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	p := Placeholder()

	assert.True(t, p.IsPlaceholder())
	assert.Equal(t, "not found", p.BucketName)
	assert.ErrorIs(t, p.Validate(), ErrMissingDownloadEndpoint)

	b, err := p.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{"bucketName":"not found"}`, string(b))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "env/env.json", PublicKey)
	assert.Equal(t, "env/env.prod.json", PrivateKey)
}
