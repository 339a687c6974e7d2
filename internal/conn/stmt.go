package conn

import (
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/protocol"
	"github.com/mimicd/mimicd/internal/result"
	"github.com/mimicd/mimicd/internal/sqlast"
	"github.com/mimicd/mimicd/internal/wire"
)

// handleStmtPrepare implements COM_STMT_PREPARE: count the `?`
// placeholders outside quoted literals (spec.md §4.D), register the
// statement, and reply with StmtPrepareOK (column count 0) followed by
// its param definition packets (no EOF after them when
// CLIENT_DEPRECATE_EOF, matching a normal result header).
func (c *Connection) handleStmtPrepare(body []byte) {
	sql := string(body)
	numParams := sqlast.CountPlaceholders(sql)

	paramCols := make([]result.Column, numParams)
	for i := range paramCols {
		paramCols[i] = result.Column{Name: "?", Type: common.TypeVarString, Charset: 45}
	}

	st := c.stmts.Prepare(sql, uint16(numParams), paramCols)

	_ = c.stream.WritePacket(protocol.EncodeStmtPrepareOK(st.ID, 0, uint16(numParams), 0))
	if numParams > 0 {
		for _, col := range paramCols {
			_ = c.stream.WritePacket(c.columnDef(col).Encode())
		}
		if c.capabilities&common.ClientDeprecateEOF == 0 {
			_ = c.stream.WritePacket(protocol.EncodeEOF(0, common.ServerStatusAutocommit))
		}
	}
}

func (c *Connection) handleStmtExecute(body []byte) {
	stmtIDRaw, _, err := wire.ReadUint4(body)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_STMT_EXECUTE"))
		return
	}
	st, ok := c.stmts.Get(stmtIDRaw)
	if !ok {
		c.errOut(common.NewError(common.ErUnknownStmtHandler, "Unknown prepared statement handle"))
		return
	}
	st.ClearBuffers()

	hasQueryAttrs := c.capabilities&common.ClientQueryAttributes != 0
	exec, _, err := protocol.DecodeComStmtExecuteHeader(body, int(st.NumParams), hasQueryAttrs)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_STMT_EXECUTE"))
		return
	}

	args := make([]interface{}, len(exec.Params))
	attrs := map[string]string{}
	for i, p := range exec.Params {
		if p.IsNull {
			continue
		}
		v, err := result.DecodeBinaryParam(p.Value, p.Type, p.Unsigned)
		if err != nil {
			c.errOut(common.NewError(common.ErParseError, "malformed parameter %d", i))
			return
		}
		args[i] = v
		if p.Name != "" {
			attrs[p.Name] = result.EncodeTextValueString(v)
		}
	}

	sql, err := sqlast.InterpolatePlaceholders(st.SQL, args)
	if err != nil {
		c.errOut(common.NewError(common.ErWrongArguments, "%s", err.Error()))
		return
	}

	set, err := c.middleware().Execute(sql, attrs)
	if err != nil {
		c.errOut(err)
		return
	}

	cursorRequested := exec.CursorType&common.CursorTypeReadOnly != 0
	if cursorRequested && set != nil && set.Rows != nil && len(set.Columns) > 0 {
		c.writeStmtResultHeader(set.Columns)
		st.OpenCursor(set.Columns, set.Rows)
		return
	}

	c.writeBinaryResultSet(set)
}

func (c *Connection) handleStmtSendLongData(body []byte) {
	stmtID, n, err := wire.ReadUint4(body)
	if err != nil || len(body) < n+2 {
		return // spec.md §4.D: malformed SEND_LONG_DATA has no response, by design of the command
	}
	st, ok := c.stmts.Get(stmtID)
	if !ok {
		return
	}
	paramID, m, err := wire.ReadUint2(body[n:])
	if err != nil {
		return
	}
	st.AppendLongData(paramID, body[n+m:])
}

func (c *Connection) handleStmtClose(body []byte) {
	stmtID, _, err := wire.ReadUint4(body)
	if err != nil {
		return // COM_STMT_CLOSE has no response regardless of outcome
	}
	c.stmts.Close(stmtID)
}

func (c *Connection) handleStmtReset(body []byte) {
	stmtID, _, err := wire.ReadUint4(body)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_STMT_RESET"))
		return
	}
	st, ok := c.stmts.Get(stmtID)
	if !ok {
		c.errOut(common.NewError(common.ErUnknownStmtHandler, "Unknown prepared statement handle"))
		return
	}
	st.ClearBuffers()
	c.ok()
}

// handleStmtFetch implements COM_STMT_FETCH against a statement's open
// server-side cursor, terminating with CURSOR_EXISTS or LAST_ROW_SENT
// per spec.md §4.D.
func (c *Connection) handleStmtFetch(body []byte) {
	stmtID, n, err := wire.ReadUint4(body)
	if err != nil || len(body) < n+4 {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_STMT_FETCH"))
		return
	}
	st, ok := c.stmts.Get(stmtID)
	if !ok {
		c.errOut(common.NewError(common.ErUnknownStmtHandler, "Unknown prepared statement handle"))
		return
	}
	count, _, err := wire.ReadUint4(body[n:])
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_STMT_FETCH"))
		return
	}
	rows, lastRowSent, err := st.Fetch(int(count))
	if err != nil {
		c.errOut(err)
		return
	}
	cols := st.CursorColumns()
	for _, row := range rows {
		enc, err := result.EncodeBinaryRow(cols, row)
		if err != nil {
			c.errOut(err)
			return
		}
		_ = c.stream.WritePacket(enc)
	}
	_ = c.stream.WritePacket(protocol.EncodeStmtFetchOK(lastRowSent, c.capabilities))
}

func (c *Connection) writeStmtResultHeader(cols []result.Column) {
	_ = c.stream.WritePacket(wire.PutLengthEncodedInt(nil, uint64(len(cols))))
	for _, col := range cols {
		_ = c.stream.WritePacket(c.columnDef(col).Encode())
	}
	if c.capabilities&common.ClientDeprecateEOF == 0 {
		_ = c.stream.WritePacket(protocol.EncodeEOF(0, common.ServerStatusCursorExists))
	}
}

// writeBinaryResultSet mirrors writeTextResultSet but encodes rows with
// the binary protocol, per spec.md §4.E.
func (c *Connection) writeBinaryResultSet(set *result.Set) {
	if set == nil {
		set = &result.Set{}
	}
	if len(set.Columns) == 0 {
		_ = c.stream.WritePacket(protocol.EncodeOK(0x00, set.AffectedRows, set.LastInsertID, common.ServerStatusAutocommit, 0, set.Info))
		return
	}

	cols := set.Columns
	var rows result.RowIter = set.Rows
	needsInference := false
	for _, col := range cols {
		if col.Type == 0 {
			needsInference = true
		}
	}
	var primed []result.Row
	if needsInference && rows != nil {
		names := make([]string, len(cols))
		for i, col := range cols {
			names[i] = col.Name
		}
		inferring := result.NewInferringIter(rows, len(cols))
		first, ok, err := inferring.Next()
		if err != nil {
			c.errOut(err)
			return
		}
		inferred := inferring.Columns(names)
		for i := range cols {
			if cols[i].Type == 0 {
				cols[i].Type = inferred[i].Type
				cols[i].Flags = inferred[i].Flags
				if cols[i].Charset == 0 {
					cols[i].Charset = inferred[i].Charset
				}
			}
		}
		if ok {
			primed = []result.Row{first}
		}
		rows = inferring
	}

	_ = c.stream.WritePacket(wire.PutLengthEncodedInt(nil, uint64(len(cols))))
	for _, col := range cols {
		_ = c.stream.WritePacket(c.columnDef(col).Encode())
	}
	deprecateEOF := c.capabilities&common.ClientDeprecateEOF != 0
	if !deprecateEOF {
		_ = c.stream.WritePacket(protocol.EncodeEOF(0, common.ServerStatusAutocommit))
	}

	rowCount := 0
	writeRow := func(row result.Row) bool {
		enc, err := result.EncodeBinaryRow(cols, row)
		if err != nil {
			c.errOut(err)
			return false
		}
		_ = c.stream.WritePacket(enc)
		return true
	}
	for _, row := range primed {
		if !writeRow(row) {
			return
		}
		rowCount++
	}
	if rows != nil {
		for {
			row, ok, err := rows.Next()
			if err != nil {
				c.errOut(err)
				return
			}
			if !ok {
				break
			}
			if !writeRow(row) {
				return
			}
			rowCount++
			if rowCount%result.YieldEvery == 0 {
				_ = c.stream.Flush()
			}
		}
	}

	if !deprecateEOF {
		_ = c.stream.WritePacket(protocol.EncodeEOF(0, common.ServerStatusAutocommit))
		return
	}
	_ = c.stream.WritePacket(protocol.EncodeOK(0xFE, set.AffectedRows, set.LastInsertID, common.ServerStatusAutocommit, 0, set.Info))
}
