package ipfs

import (
	"fmt"
	"net/url"
	"strings"

	apperrors "Web3Agent-Chain/internal/errors"
)

// Ref is the canonical decomposition of any way of naming IPFS content.
// For IPNS references CID holds the peer ID or DNSLink name instead of a CID.
type Ref struct {
	CID  string
	Path string // optional subpath, no leading slash
	IPNS bool
}

// ParseRef extracts the CID and subpath from an ipfs:// or ipns:// URI, a
// gateway URL, a /ipfs/ or /ipns/ path, or a bare CID.
func ParseRef(input string) (Ref, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Ref{}, apperrors.New(apperrors.CodeInvalidArgument, "IPFS 引用不能为空")
	}
	ipns := false
	switch {
	case strings.HasPrefix(s, "ipfs://"):
		s = strings.TrimPrefix(s, "ipfs://")
		// ipfs://ipfs/<cid> appears in the wild.
		s = strings.TrimPrefix(s, "ipfs/")
	case strings.HasPrefix(s, "ipns://"):
		ipns = true
		s = strings.TrimPrefix(s, "ipns://")
	case strings.HasPrefix(s, "http://"), strings.HasPrefix(s, "https://"):
		parsed, err := url.Parse(s)
		if err != nil {
			return Ref{}, apperrors.Wrap(apperrors.CodeInvalidArgument, err,
				fmt.Sprintf("无法解析网关地址: %s", input))
		}
		if i := strings.Index(parsed.Path, "/ipfs/"); i >= 0 {
			s = parsed.Path[i+len("/ipfs/"):]
		} else if i := strings.Index(parsed.Path, "/ipns/"); i >= 0 {
			ipns = true
			s = parsed.Path[i+len("/ipns/"):]
		} else {
			return Ref{}, apperrors.New(apperrors.CodeInvalidArgument,
				fmt.Sprintf("网关地址缺少 /ipfs/ 或 /ipns/ 路径: %s", input))
		}
	case strings.HasPrefix(s, "/ipfs/"):
		s = strings.TrimPrefix(s, "/ipfs/")
	case strings.HasPrefix(s, "/ipns/"):
		ipns = true
		s = strings.TrimPrefix(s, "/ipns/")
	}
	s = strings.Trim(s, "/")
	cidPart, path := s, ""
	if i := strings.IndexByte(s, '/'); i >= 0 {
		cidPart, path = s[:i], s[i+1:]
	}
	if ipns {
		// IPNS names are peer IDs or DNSLink domains, not CIDs.
		if cidPart == "" {
			return Ref{}, apperrors.New(apperrors.CodeInvalidArgument, "IPNS 名称不能为空")
		}
		return Ref{CID: cidPart, Path: path, IPNS: true}, nil
	}
	if _, err := ParseCID(cidPart); err != nil {
		return Ref{}, err
	}
	return Ref{CID: cidPart, Path: path}, nil
}

// GatewayURL renders the reference as an HTTP URL on the given gateway base.
// The base may or may not carry a trailing /ipfs/ segment.
func (r Ref) GatewayURL(gateway string) string {
	base := strings.TrimRight(strings.TrimSpace(gateway), "/")
	base = strings.TrimSuffix(base, "/ipfs")
	base = strings.TrimSuffix(base, "/ipns")
	if r.IPNS {
		base += "/ipns"
	} else {
		base += "/ipfs"
	}
	out := base + "/" + r.CID
	if r.Path != "" {
		out += "/" + r.Path
	}
	return out
}

// URI renders the canonical ipfs:// (or ipns://) form of the reference.
func (r Ref) URI() string {
	scheme := "ipfs://"
	if r.IPNS {
		scheme = "ipns://"
	}
	if r.Path != "" {
		return scheme + r.CID + "/" + r.Path
	}
	return scheme + r.CID
}

// NormalizeURI rewrites any IPFS reference into its canonical ipfs:// form.
// The operation is idempotent: normalizing an already canonical URI returns
// it unchanged.
func NormalizeURI(input string) (string, error) {
	ref, err := ParseRef(input)
	if err != nil {
		return "", err
	}
	return ref.URI(), nil
}
