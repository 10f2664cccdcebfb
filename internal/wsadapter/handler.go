package wsadapter

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"msgrelay/internal/center"
	"msgrelay/pkg/jwt"
	"msgrelay/pkg/log"
)

// Origins holds the CORS allowlist for the WebSocket upgrade, read from
// config instead of the teacher's hardcoded domain list (spec §8
// supplemented features: "CORS-aware CheckOrigin").
type Origins struct {
	Allowed        []string // exact origin strings always accepted
	AllowLocalhost bool
	PrivateSubnets []string // CIDR blocks accepted alongside Allowed
}

func (o Origins) allows(origin string) bool {
	for _, allowed := range o.Allowed {
		if origin == allowed {
			return true
		}
	}
	if o.AllowLocalhost && isLocalhostOrigin(origin) {
		return true
	}
	if len(o.PrivateSubnets) > 0 && isPrivateOrigin(origin, o.PrivateSubnets) {
		return true
	}
	return false
}

func isLocalhostOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

func isPrivateOrigin(origin string, cidrs []string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	hostname := u.Hostname()
	if strings.Contains(hostname, ":") {
		hostname = strings.Split(hostname, ":")[0]
	}
	ip := net.ParseIP(hostname)
	if ip == nil {
		return false
	}
	for _, cidr := range cidrs {
		_, subnet, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if subnet.Contains(ip) {
			return true
		}
	}
	return false
}

// Handler hosts the WebSocket upgrade endpoint and wires every accepted
// connection into the Messages Center (spec §4.6).
type Handler struct {
	center            *center.Center
	jwtValidator      *jwt.Validator
	logger            log.Logger
	cfg               Config
	channelQueryParam string
	upgrader          websocket.Upgrader

	activeConnections atomic.Int64
}

// ActiveConnections reports the number of currently attached connections,
// for the health/metrics endpoints (spec §8 supplemented features).
func (h *Handler) ActiveConnections() int {
	return int(h.activeConnections.Load())
}

// NewHandler constructs a Handler. jwtValidator may be nil, in which case
// the channel is read directly from the channelQueryParam query string
// instead of being extracted from a JWT (spec §4.6 "optional
// authenticate() hook").
func NewHandler(c *center.Center, jwtValidator *jwt.Validator, logger log.Logger, cfg Config, origins Origins, channelQueryParam string) *Handler {
	if channelQueryParam == "" {
		channelQueryParam = "channel"
	}
	return &Handler{
		center:            c,
		jwtValidator:      jwtValidator,
		logger:            logger,
		cfg:               cfg,
		channelQueryParam: channelQueryParam,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return origins.allows(r.Header.Get("Origin"))
			},
		},
	}
}

// authenticate resolves the channel for an incoming upgrade request: via
// the JWT validator when configured, otherwise from the query parameter
// (spec §4.6, §6 "Connection attach URL").
func (h *Handler) authenticate(c *gin.Context) (string, error) {
	if h.jwtValidator != nil {
		token := c.Query("token")
		return h.jwtValidator.ExtractChannel(token)
	}
	channel := c.Query(h.channelQueryParam)
	if channel == "" {
		return "", errMissingChannel
	}
	return channel, nil
}

// HandleUpgrade implements the adapter's "on accept" contract: upgrade,
// validate, attach, then run the connection's pumps until it closes. On
// authentication failure the socket is still upgraded, then closed with
// a reason string (spec.md "on failure close the socket with a reason
// string"), since a client speaking this protocol expects a completed
// handshake followed by a close frame, not a rejected HTTP request.
func (h *Handler) HandleUpgrade(c *gin.Context) {
	ctx := context.Background()

	channel, authErr := h.authenticate(c)

	rawConn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf(ctx, "wsadapter: upgrade failed: %v", err)
		return
	}

	if authErr != nil {
		h.logger.Warnf(ctx, "wsadapter: rejecting connection: %v", authErr)
		closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, authErr.Error())
		_ = rawConn.WriteMessage(websocket.CloseMessage, closeMsg)
		_ = rawConn.Close()
		return
	}

	conn := NewConn(rawConn, channel, h.cfg, h.logger)
	h.center.Attach(ctx, channel, conn)
	h.activeConnections.Add(1)

	conn.Start(
		func(text string) { h.center.Handle(ctx, text, conn) },
		func() {
			h.center.Detach(channel, conn)
			h.activeConnections.Add(-1)
		},
	)

	h.logger.Infof(ctx, "wsadapter: connection attached to channel %s", channel)
}

// SetupRoutes registers the upgrade endpoint on router.
func (h *Handler) SetupRoutes(router *gin.Engine, path string) {
	if path == "" {
		path = "/ws"
	}
	router.GET(path, h.HandleUpgrade)
}

var errMissingChannel = missingChannelError{}

type missingChannelError struct{}

func (missingChannelError) Error() string { return "wsadapter: missing channel query parameter" }
