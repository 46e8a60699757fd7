package edge

import (
	"fmt"

	"github.com/kgellert/nextjs-split-deploy/internal/envdoc"
)

// blockedURI is only reachable through a signed URL against the bucket.
const blockedURI = "/" + envdoc.PrivateKey

// ViewerRequestBlocked mirrors the CloudFront Function attached to /env/*.
func ViewerRequestBlocked(uri string) bool {
	return uri == blockedURI
}

// ViewerRequestSource is the cloudfront-js-2.0 source of the viewer-request
// function.
func ViewerRequestSource() string {
	return fmt.Sprintf(`function handler(event) {
  var request = event.request;
  if (request.uri === %q) {
    return { statusCode: 403, statusDescription: "Forbidden" };
  }
  return request;
}
`, blockedURI)
}
