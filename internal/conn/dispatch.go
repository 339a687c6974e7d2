package conn

import (
	"github.com/mimicd/mimicd/internal/auth"
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/control"
	"github.com/mimicd/mimicd/internal/protocol"
	"github.com/mimicd/mimicd/internal/session"
	"github.com/mimicd/mimicd/internal/stream"
	"github.com/mimicd/mimicd/internal/wire"
)

// commandLoop implements spec.md §4.C's Command state: read one
// packet, dispatch by its first byte, convert any error to a single
// ERR frame, and reset the sequence counter before the next read.
func (c *Connection) commandLoop() error {
	for {
		select {
		case kind := <-c.cancelCh:
			c.writeErrBestEffort(common.NewError(common.ErSessionWasKilled, "Query execution was interrupted"))
			_ = c.stream.Flush()
			if kind == control.CancelConnection {
				return nil
			}
		default:
		}

		payload, err := c.stream.ReadPacket()
		if err != nil {
			if err == stream.ErrConnectionClosed {
				return nil
			}
			return err
		}
		if len(payload) == 0 {
			c.stream.ResetSeq()
			continue
		}

		quit, loopErr := c.dispatch(payload[0], payload[1:])
		_ = c.stream.Flush()
		c.stream.ResetSeq()
		if quit {
			return nil
		}
		if loopErr != nil {
			return loopErr
		}
	}
}

func (c *Connection) dispatch(cmdByte byte, body []byte) (quit bool, err error) {
	switch cmdByte {
	case common.ComQuit:
		return true, nil
	case common.ComPing, common.ComDebug, common.ComSetOption:
		c.ok()
		return false, nil
	case common.ComResetConnection:
		c.stmts.CloseAll()
		if rerr := c.sess.Reset(); rerr != nil {
			c.errOut(rerr)
			return false, nil
		}
		c.ok()
		return false, nil
	case common.ComInitDB:
		db := string(body)
		if uerr := c.sess.Use(db); uerr != nil {
			c.errOut(uerr)
			return false, nil
		}
		c.ok()
		return false, nil
	case common.ComQuery:
		c.handleQuery(body)
		return false, nil
	case common.ComFieldList:
		c.handleFieldList(body)
		return false, nil
	case common.ComChangeUser:
		c.handleChangeUser(body)
		return false, nil
	case common.ComStmtPrepare:
		c.handleStmtPrepare(body)
		return false, nil
	case common.ComStmtExecute:
		c.handleStmtExecute(body)
		return false, nil
	case common.ComStmtSendLongData:
		c.handleStmtSendLongData(body)
		return false, nil
	case common.ComStmtClose:
		c.handleStmtClose(body)
		return false, nil
	case common.ComStmtReset:
		c.handleStmtReset(body)
		return false, nil
	case common.ComStmtFetch:
		c.handleStmtFetch(body)
		return false, nil
	default:
		c.errOut(common.NewError(common.ErUnknownComError, "Unknown command %d", cmdByte))
		return false, nil
	}
}

func (c *Connection) ok() {
	_ = c.stream.WritePacket(protocol.EncodeOK(0x00, 0, 0, common.ServerStatusAutocommit, 0, ""))
}

func (c *Connection) errOut(err error) {
	e := common.AsMySQLError(err)
	_ = c.stream.WritePacket(protocol.EncodeErr(e.Code, e.SQLState(), e.Message))
}

func (c *Connection) middleware() *session.Middleware {
	mgr, err := c.schemaManager()
	if err != nil {
		mgr = nil
	}
	return &session.Middleware{
		Session: c.sess,
		Schema:  mgr,
		Kill:    c.cfg.Registry,
		Version: c.cfg.ServerVersion,
	}
}

func (c *Connection) handleFieldList(body []byte) {
	table, n, err := wire.ReadNullTerminatedString(body)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_FIELD_LIST"))
		return
	}
	wildcard := string(body[n:])

	mgr, err := c.schemaManager()
	if err != nil {
		c.errOut(err)
		return
	}
	set, err := mgr.ShowColumns(c.sess.Database, table, "", wildcard)
	if err != nil {
		c.errOut(err)
		return
	}
	c.writeColumnDefsOnly(set.Columns)
}

func (c *Connection) handleChangeUser(body []byte) {
	req, err := protocol.DecodeComChangeUser(body, c.capabilities)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_CHANGE_USER"))
		return
	}
	reuse := req.AuthPluginName == c.handshakePlugin
	outcome, err := c.runAuthLifecycle(req.Username, req.AuthResponse, req.AuthPluginName, reuse)
	if err != nil {
		c.errOut(common.NewError(common.ErHandshakeError, "%s", err.Error()))
		return
	}
	if outcome.Kind != auth.OutcomeSuccess {
		c.errOut(common.NewError(common.ErAccessDeniedError, "Access denied for user '%s'", req.Username))
		return
	}
	c.stmts.CloseAll()
	_ = c.sess.Reset()
	c.sess.AuthenticatedUser = outcome.AuthenticatedAs
	c.sess.ExternalUser = req.Username
	if req.Database != "" {
		_ = c.sess.Use(req.Database)
	}
	c.ok()
}
