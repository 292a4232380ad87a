package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"Web3Agent-Chain/internal/config"
	apperrors "Web3Agent-Chain/internal/errors"
	"Web3Agent-Chain/pkg/logger"
)

const (
	contentCacheTTL = 5 * time.Minute
	maxContentBytes = 16 << 20
	probeTimeout    = 5 * time.Second
	// probeCID is the empty unixfs directory every gateway can serve.
	probeCID = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"
)

// Content 表示一次网关读取的结果。
type Content struct {
	CID         string `json:"cid"`
	Path        string `json:"path,omitempty"`
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Gateway     string `json:"gateway"`
	FromCache   bool   `json:"from_cache"`
}

// Client reads content through public gateways, falling back across the
// configured list, and writes through a local node API when one is
// configured.
type Client struct {
	gateways   []string
	apiAddress string
	httpClient *http.Client
	cache      *gocache.Cache
	log        *slog.Logger
}

// NewClient builds a gateway client from configuration. The primary gateway
// is tried first, then the backups in order.
func NewClient(cfg config.IPFSConfig) *Client {
	gateways := make([]string, 0, 1+len(cfg.BackupGateways))
	if cfg.PrimaryGateway != "" {
		gateways = append(gateways, cfg.PrimaryGateway)
	}
	for _, gw := range cfg.BackupGateways {
		if gw != "" {
			gateways = append(gateways, gw)
		}
	}
	return &Client{
		gateways:   gateways,
		apiAddress: cfg.APIAddress,
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		cache:      gocache.New(contentCacheTTL, 2*contentCacheTTL),
		log:        logger.Named("ipfs"),
	}
}

// Gateways returns the configured gateway list in fallback order.
func (c *Client) Gateways() []string {
	out := make([]string, len(c.gateways))
	copy(out, c.gateways)
	return out
}

// HasNodeAPI reports whether a local node API is configured for writes.
func (c *Client) HasNodeAPI() bool { return c.apiAddress != "" }

// Fetch resolves any IPFS reference and downloads its content, trying each
// gateway in order. Repeated fetches of the same reference are served from an
// in-memory cache unless forceRefresh is set.
func (c *Client) Fetch(ctx context.Context, reference string, forceRefresh bool) (*Content, error) {
	ref, err := ParseRef(reference)
	if err != nil {
		return nil, err
	}
	if len(c.gateways) == 0 {
		return nil, apperrors.New(apperrors.CodeInitializationFailure, "未配置任何 IPFS 网关")
	}
	cacheKey := ref.URI()
	if !forceRefresh {
		if cached, ok := c.cache.Get(cacheKey); ok {
			content := cached.(*Content)
			copied := *content
			copied.FromCache = true
			return &copied, nil
		}
	}

	var lastErr error
	for _, gateway := range c.gateways {
		content, err := c.fetchFrom(ctx, gateway, ref)
		if err == nil {
			c.cache.Set(cacheKey, content, gocache.DefaultExpiration)
			return content, nil
		}
		lastErr = err
		c.log.Warn("网关读取失败, 尝试下一个", "gateway", gateway, "cid", ref.CID, "error", err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, lastErr,
		fmt.Sprintf("所有网关均无法读取内容: %s", ref.CID))
}

func (c *Client) fetchFrom(ctx context.Context, gateway string, ref Ref) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.GatewayURL(gateway), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("网关返回状态码 %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &Content{
		CID:         ref.CID,
		Path:        ref.Path,
		Data:        data,
		ContentType: contentType,
		Size:        len(data),
		Gateway:     gateway,
	}, nil
}

// FetchJSON fetches a reference and decodes it as JSON, the common shape of
// NFT metadata documents.
func (c *Client) FetchJSON(ctx context.Context, reference string, out any) error {
	content, err := c.Fetch(ctx, reference, false)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content.Data, out); err != nil {
		return apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err,
			fmt.Sprintf("内容不是合法的 JSON: %s", reference))
	}
	return nil
}

// ProbeResult 描述一次网关测速的结果。
type ProbeResult struct {
	Gateway string        `json:"gateway"`
	Latency time.Duration `json:"latency"`
	Healthy bool          `json:"healthy"`
	Error   string        `json:"error,omitempty"`
}

// ProbeGateways measures every configured gateway concurrently and returns
// the results in configuration order along with the fastest healthy gateway.
func (c *Client) ProbeGateways(ctx context.Context) ([]ProbeResult, string) {
	results := make([]ProbeResult, len(c.gateways))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, gateway := range c.gateways {
		group.Go(func() error {
			probeCtx, cancel := context.WithTimeout(groupCtx, probeTimeout)
			defer cancel()
			start := time.Now()
			_, err := c.fetchFrom(probeCtx, gateway, Ref{CID: probeCID})
			results[i] = ProbeResult{
				Gateway: gateway,
				Latency: time.Since(start),
				Healthy: err == nil,
			}
			if err != nil {
				results[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = group.Wait()

	fastest := ""
	var best time.Duration
	for _, result := range results {
		if result.Healthy && (fastest == "" || result.Latency < best) {
			fastest, best = result.Gateway, result.Latency
		}
	}
	return results, fastest
}

// AddResult 描述一次内容发布的结果。
type AddResult struct {
	CID  string `json:"cid"`
	URI  string `json:"uri"`
	Size int    `json:"size"`
	// Local is true when the CID was computed locally because no node API
	// is configured; the content has not been published anywhere.
	Local bool `json:"local"`
}

// Add publishes raw bytes through the local node API. Without a node API the
// CID is still computed locally so callers can address the content, but
// nothing is uploaded.
func (c *Client) Add(ctx context.Context, name string, data []byte) (*AddResult, error) {
	if c.apiAddress == "" {
		computed, err := ComputeCID(data)
		if err != nil {
			return nil, err
		}
		return &AddResult{CID: computed, URI: "ipfs://" + computed, Size: len(data), Local: true}, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", name)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "构造上传请求失败")
	}
	if _, err := part.Write(data); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "写入上传内容失败")
	}
	if err := writer.Close(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "关闭上传请求失败")
	}

	endpoint := strings.TrimRight(c.apiAddress, "/") + "/api/v0/add?cid-version=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "构造上传请求失败")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "调用 IPFS 节点失败")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New(apperrors.CodeIPFSFetchFailure,
			fmt.Sprintf("IPFS 节点返回状态码 %d", resp.StatusCode))
	}
	var decoded struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "解析节点响应失败")
	}
	return &AddResult{CID: decoded.Hash, URI: "ipfs://" + decoded.Hash, Size: len(data)}, nil
}

// Pin asks the local node to pin a CID. Requires a configured node API.
func (c *Client) Pin(ctx context.Context, reference string) error {
	ref, err := ParseRef(reference)
	if err != nil {
		return err
	}
	if c.apiAddress == "" {
		return apperrors.New(apperrors.CodeInitializationFailure, "未配置本地 IPFS 节点, 无法固定内容")
	}
	endpoint := strings.TrimRight(c.apiAddress, "/") + "/api/v0/pin/add?arg=" + ref.CID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "构造固定请求失败")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeIPFSFetchFailure, err, "调用 IPFS 节点失败")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return apperrors.New(apperrors.CodeIPFSFetchFailure,
			fmt.Sprintf("固定内容失败, 节点返回状态码 %d", resp.StatusCode))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
