package main

import (
	"context"
	"io"
	"net"
	"strings"

	"go.uber.org/zap"

	dberrors "github.com/francodb/francodb/pkg/errors"
	"github.com/francodb/francodb/pkg/engine"
	"github.com/francodb/francodb/pkg/protocol"
	"github.com/francodb/francodb/pkg/server"
	"github.com/francodb/francodb/pkg/sql"
)

// connHandler implements server.Handler: one francodb session per
// accepted connection, a loop of request frame in, response frame out
// until the client disconnects or a protocol error makes the
// connection unusable.
type connHandler struct {
	engine *engine.Engine
	logger *zap.Logger
	srv    *server.Server // set once by main, after server.New
}

func newConnHandler(eng *engine.Engine, logger *zap.Logger) *connHandler {
	return &connHandler{engine: eng, logger: logger}
}

// HandleConn owns conn's entire lifetime, closing it on return.
func (h *connHandler) HandleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	addr := conn.RemoteAddr().String()

	sess, err := h.engine.NewSession()
	if err != nil {
		h.logger.Warn("opening session", zap.String("remote", addr), zap.Error(err))
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ftype, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("reading frame", zap.String("remote", addr), zap.Error(err))
			}
			return
		}

		text := strings.TrimSpace(protocol.DecodeText(payload))
		if user, pass, ok := parseLogin(text); ok {
			h.handleLogin(conn, ftype, addr, sess, user, pass)
			continue
		}

		h.handleStatement(conn, ftype, sess, text)
	}
}

// parseLogin recognizes "LOGIN <username> <password>", the one command
// spec.md's wire protocol understands outside the SQL statement grammar
// (pkg/sql has no LoginStmt; authentication binds a session's identity,
// it doesn't touch the catalog or execution pipeline a parsed statement
// does).
func parseLogin(text string) (user, pass string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) != 3 || !strings.EqualFold(fields[0], "LOGIN") {
		return "", "", false
	}
	return fields[1], fields[2], true
}

func (h *connHandler) handleLogin(conn net.Conn, ftype protocol.FrameType, addr string, sess *engine.Session, user, pass string) {
	if h.srv != nil && !h.srv.LoginAllowed(addr) {
		h.writeResult(conn, ftype, nil, dberrors.New(dberrors.AuthDenied, "too many login attempts"))
		return
	}
	err := sess.Authenticate(user, pass)
	if err != nil {
		h.writeResult(conn, ftype, nil, err)
		return
	}
	h.writeResult(conn, ftype, &engine.Result{Message: "login ok"}, nil)
}

func (h *connHandler) handleStatement(conn net.Conn, ftype protocol.FrameType, sess *engine.Session, text string) {
	if text == "" {
		h.writeResult(conn, ftype, &engine.Result{Message: "ok"}, nil)
		return
	}
	stmt, err := sql.Parse(text)
	if err != nil {
		h.writeResult(conn, ftype, nil, err)
		return
	}
	result, err := sess.Execute(stmt)
	h.writeResult(conn, ftype, result, err)
}
