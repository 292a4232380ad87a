package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"unicode/utf8"

	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/internal/ipfs"
)

// IPFSTool 读取、发布与固定 IPFS 内容。
type IPFSTool struct {
	client *ipfs.Client
}

// NewIPFSTool wires the IPFS tool to the gateway client.
func NewIPFSTool(client *ipfs.Client) *IPFSTool {
	return &IPFSTool{client: client}
}

func (t *IPFSTool) Name() string { return "ipfs" }

func (t *IPFSTool) Description() string {
	return "IPFS 操作: 内容读取、发布、固定、URI 规范化与 CID 转换"
}

func (t *IPFSTool) Execute(ctx context.Context, params map[string]any) map[string]any {
	switch action := actionOf(params); action {
	case "get", "fetch", "":
		return t.get(ctx, params)
	case "add":
		return t.add(ctx, params)
	case "pin":
		return t.pin(ctx, params)
	case "normalize_uri", "normalize":
		return t.normalize(params)
	case "convert_cid":
		return t.convertCID(params)
	case "probe_gateways", "probe":
		results, fastest := t.client.ProbeGateways(ctx)
		return OK(map[string]any{"gateways": results, "fastest": fastest})
	default:
		return failUnknownAction(t.Name(), action)
	}
}

func (t *IPFSTool) get(ctx context.Context, params map[string]any) map[string]any {
	reference, err := requireString(params, "cid")
	if err != nil {
		if reference, err = requireString(params, "uri"); err != nil {
			return Failf(apperrors.CodeInvalidArgument, "缺少 cid 或 uri 参数")
		}
	}
	if path := stringParam(params, "path"); path != "" {
		reference = strings.TrimRight(reference, "/") + "/" + strings.TrimLeft(path, "/")
	}
	content, err := t.client.Fetch(ctx, reference, boolParam(params, "force_refresh"))
	if err != nil {
		return Fail(err)
	}
	fields := map[string]any{
		"cid":          content.CID,
		"content_type": content.ContentType,
		"size":         content.Size,
		"gateway":      content.Gateway,
		"from_cache":   content.FromCache,
	}
	if content.Path != "" {
		fields["path"] = content.Path
	}
	// Text payloads come back inline; binary payloads are base64 encoded.
	if utf8.Valid(content.Data) && !strings.HasPrefix(content.ContentType, "image/") {
		fields["content"] = string(content.Data)
	} else {
		fields["content_base64"] = base64.StdEncoding.EncodeToString(content.Data)
	}
	return OK(fields)
}

// addPayload extracts the content to publish: a string, raw base64 bytes, or
// an arbitrary JSON document.
func addPayload(params map[string]any) (string, []byte, error) {
	name := stringParam(params, "name")
	if name == "" {
		name = "content"
	}
	if raw, ok := params["content"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			return name, []byte(v), nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return "", nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "序列化 content 失败")
			}
			return name, encoded, nil
		}
	}
	if encoded := stringParam(params, "content_base64"); encoded != "" {
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return "", nil, apperrors.Wrap(apperrors.CodeInvalidArgument, err, "解码 content_base64 失败")
		}
		return name, data, nil
	}
	return "", nil, apperrors.New(apperrors.CodeInvalidArgument, "缺少 content 或 content_base64 参数")
}

func (t *IPFSTool) add(ctx context.Context, params map[string]any) map[string]any {
	name, data, err := addPayload(params)
	if err != nil {
		return Fail(err)
	}
	result, err := t.client.Add(ctx, name, data)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{
		"cid":   result.CID,
		"uri":   result.URI,
		"size":  result.Size,
		"local": result.Local,
	})
}

func (t *IPFSTool) pin(ctx context.Context, params map[string]any) map[string]any {
	reference, err := requireString(params, "cid")
	if err != nil {
		return Fail(err)
	}
	if err := t.client.Pin(ctx, reference); err != nil {
		return Fail(err)
	}
	return OK(map[string]any{"cid": reference, "pinned": true})
}

func (t *IPFSTool) normalize(params map[string]any) map[string]any {
	input, err := requireString(params, "uri")
	if err != nil {
		return Fail(err)
	}
	normalized, err := ipfs.NormalizeURI(input)
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{"uri": normalized})
}

func (t *IPFSTool) convertCID(params map[string]any) map[string]any {
	input, err := requireString(params, "cid")
	if err != nil {
		return Fail(err)
	}
	version := stringParam(params, "version")
	var converted string
	switch version {
	case "0", "v0":
		converted, err = ipfs.ToV0(input)
	case "1", "v1", "":
		converted, err = ipfs.ToV1(input)
	default:
		return Failf(apperrors.CodeInvalidArgument, "未知的 CID 版本: %s", version)
	}
	if err != nil {
		return Fail(err)
	}
	return OK(map[string]any{"cid": input, "converted": converted, "version": version})
}
