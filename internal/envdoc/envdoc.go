// Package envdoc describes the environment descriptor written to the asset
// bucket at deploy time and read by browsers through the edge.
package envdoc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

const (
	// Prefix is the key prefix (and edge path prefix) of both documents.
	Prefix = "env/"

	// PublicName is the descriptor any visitor may read.
	PublicName = "env.json"
	PublicKey  = Prefix + PublicName

	// PrivateName is the document only reachable through a signed URL.
	PrivateName = "env.prod.json"
	PrivateKey  = Prefix + PrivateName

	placeholderBucketName = "not found"
)

var ErrMissingDownloadEndpoint = errors.New("descriptor has no downloadS3Lambda")

// Descriptor is the public env/env.json document. Deployments fill
// CloudfrontURL; older ones wrote BucketURL/BucketName instead.
type Descriptor struct {
	CloudfrontURL    string `json:"cloudfrontUrl,omitempty"`
	BucketURL        string `json:"bucketUrl,omitempty"`
	BucketName       string `json:"bucketName,omitempty"`
	DownloadS3Lambda string `json:"downloadS3Lambda,omitempty"`
}

// Placeholder is exposed while no descriptor could be loaded.
func Placeholder() Descriptor {
	return Descriptor{BucketName: placeholderBucketName}
}

func (d Descriptor) IsPlaceholder() bool {
	return d == Placeholder()
}

// BaseURL returns the deployment origin, preferring the distribution URL.
func (d Descriptor) BaseURL() string {
	if d.CloudfrontURL != "" {
		return d.CloudfrontURL
	}
	return d.BucketURL
}

func (d Descriptor) Validate() error {
	if d.DownloadS3Lambda == "" {
		return ErrMissingDownloadEndpoint
	}
	return nil
}

func Decode(r io.Reader) (Descriptor, error) {
	const op = "envdoc.Decode"

	var d Descriptor
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Descriptor{}, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

func (d Descriptor) Marshal() ([]byte, error) {
	return json.Marshal(d)
}
