// Package blobtoken issues and checks short-lived, object-scoped access URLs
// for blob storage using shared-key SAS signatures.
package blobtoken

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

const (
	// ClockSkew backdates every token's start time.
	ClockSkew = 5 * time.Minute
	// WriteValidity is how long an upload URL stays usable.
	WriteValidity = time.Hour
	// DefaultReadMinutes applies when a caller passes a non-positive duration.
	DefaultReadMinutes = 120
)

var (
	// ErrSignatureMismatch means the URL was not issued for the claimed object by this issuer.
	ErrSignatureMismatch = errors.New("blobtoken: signature mismatch")
	// ErrTokenExpired means the check time falls outside the token window.
	ErrTokenExpired = errors.New("blobtoken: token outside validity window")
)

// Options configures an Issuer.
type Options struct {
	AccountName string
	// AccountKey is the base64 storage account key.
	AccountKey string
	Container  string
	// Endpoint is the blob service base URL, e.g. https://acct.blob.core.windows.net.
	Endpoint  string
	AllowHTTP bool
	Now       func() time.Time
}

// Issuer signs URLs for one container. It holds no per-token state.
type Issuer struct {
	cred      *azblob.SharedKeyCredential
	endpoint  string
	container string
	protocol  sas.Protocol
	now       func() time.Time
}

// New validates the credential and returns an Issuer.
func New(opts Options) (*Issuer, error) {
	if opts.AccountName == "" || opts.AccountKey == "" {
		return nil, errors.New("blobtoken: account name and key are required")
	}
	if opts.Container == "" {
		return nil, errors.New("blobtoken: container is required")
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("blobtoken: shared key: %w", err)
	}
	endpoint := strings.TrimRight(opts.Endpoint, "/")
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}
	protocol := sas.ProtocolHTTPS
	if opts.AllowHTTP {
		protocol = sas.ProtocolHTTPSandHTTP
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Issuer{cred: cred, endpoint: endpoint, container: opts.Container, protocol: protocol, now: now}, nil
}

// IssueReadToken returns a read-only URL for objectName valid for validMinutes.
func (i *Issuer) IssueReadToken(objectName string, validMinutes int) (string, error) {
	if validMinutes <= 0 {
		validMinutes = DefaultReadMinutes
	}
	perms := sas.BlobPermissions{Read: true}
	return i.sign(objectName, perms.String(), "", time.Duration(validMinutes)*time.Minute)
}

// IssueWriteToken returns an upload URL for exactly objectName, valid for
// WriteValidity, with the response content type pinned to contentType.
func (i *Issuer) IssueWriteToken(objectName, contentType string) (string, error) {
	perms := sas.BlobPermissions{Read: true, Create: true, Write: true}
	return i.sign(objectName, perms.String(), contentType, WriteValidity)
}

func (i *Issuer) sign(objectName, permissions, contentType string, validity time.Duration) (string, error) {
	if objectName == "" {
		return "", errors.New("blobtoken: object name is required")
	}
	now := i.now().UTC()
	qp, err := sas.BlobSignatureValues{
		Protocol:      i.protocol,
		StartTime:     now.Add(-ClockSkew),
		ExpiryTime:    now.Add(validity),
		Permissions:   permissions,
		ContainerName: i.container,
		BlobName:      objectName,
		ContentType:   contentType,
	}.SignWithSharedKey(i.cred)
	if err != nil {
		return "", fmt.Errorf("blobtoken: sign %s: %w", objectName, err)
	}
	return i.objectURL(objectName) + "?" + qp.Encode(), nil
}

func (i *Issuer) objectURL(objectName string) string {
	segments := strings.Split(objectName, "/")
	for n, s := range segments {
		segments[n] = url.PathEscape(s)
	}
	return i.endpoint + "/" + url.PathEscape(i.container) + "/" + strings.Join(segments, "/")
}

// Verify checks that rawURL was signed by this issuer for objectName and that
// now lies inside its validity window.
func (i *Issuer) Verify(rawURL, objectName string, now time.Time) error {
	parts, err := sas.ParseURL(rawURL)
	if err != nil {
		return fmt.Errorf("blobtoken: parse url: %w", err)
	}
	qp := parts.SAS
	if qp.Signature() == "" {
		return ErrSignatureMismatch
	}

	expected, err := sas.BlobSignatureValues{
		Version:       qp.Version(),
		Protocol:      qp.Protocol(),
		StartTime:     qp.StartTime(),
		ExpiryTime:    qp.ExpiryTime(),
		Permissions:   qp.Permissions(),
		ContainerName: i.container,
		BlobName:      objectName,
		ContentType:   qp.ContentType(),
	}.SignWithSharedKey(i.cred)
	if err != nil {
		return ErrSignatureMismatch
	}
	if subtle.ConstantTimeCompare([]byte(expected.Signature()), []byte(qp.Signature())) != 1 {
		return ErrSignatureMismatch
	}

	if now.Before(qp.StartTime()) || !now.Before(qp.ExpiryTime()) {
		return ErrTokenExpired
	}
	return nil
}
