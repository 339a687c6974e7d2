package conn

import (
	"github.com/mimicd/mimicd/internal/common"
	"github.com/mimicd/mimicd/internal/protocol"
	"github.com/mimicd/mimicd/internal/result"
	"github.com/mimicd/mimicd/internal/wire"
)

func (c *Connection) handleQuery(body []byte) {
	q, err := protocol.DecodeComQuery(body, c.capabilities)
	if err != nil {
		c.errOut(common.NewError(common.ErParseError, "malformed COM_QUERY"))
		return
	}
	set, err := c.middleware().Execute(q.SQL, q.Attrs)
	if err != nil {
		c.errOut(err)
		return
	}
	c.writeTextResultSet(set)
}

// writeColumnDefsOnly emits just the column-definition section of a
// result set (column count, each ColumnDefinition41, then EOF unless
// CLIENT_DEPRECATE_EOF), used by COM_FIELD_LIST which never carries
// row data.
func (c *Connection) writeColumnDefsOnly(cols []result.Column) {
	_ = c.stream.WritePacket(wire.PutLengthEncodedInt(nil, uint64(len(cols))))
	for _, col := range cols {
		_ = c.stream.WritePacket(c.columnDef(col).Encode())
	}
	if c.capabilities&common.ClientDeprecateEOF == 0 {
		_ = c.stream.WritePacket(protocol.EncodeEOF(0, common.ServerStatusAutocommit))
	}
}

func (c *Connection) columnDef(col result.Column) protocol.ColumnDefinition41 {
	charset := col.Charset
	if charset == 0 {
		charset = 45 // utf8mb4_general_ci
	}
	return protocol.ColumnDefinition41{
		Schema:       col.Schema,
		Table:        col.Table,
		OrgTable:     col.Table,
		Name:         col.Name,
		OrgName:      col.Name,
		CharsetID:    charset,
		ColumnLength: col.Length,
		Type:         col.Type,
		Flags:        col.Flags,
		Decimals:     col.Decimals,
	}
}

// writeTextResultSet emits a complete text-protocol result (or, if set
// has no columns at all, a bare OK), per spec.md §4.E. Columns whose
// Type was left unset by the backend are resolved via InferringIter
// before any column-definition packet is written, since the column
// count and types must precede row data on the wire.
func (c *Connection) writeTextResultSet(set *result.Set) {
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

	writeRow := func(row result.Row) {
		buf := make([]byte, 0, 32*len(row))
		for _, v := range row {
			buf = append(buf, result.EncodeTextValue(v)...)
		}
		_ = c.stream.WritePacket(buf)
	}

	rowCount := 0
	for _, row := range primed {
		writeRow(row)
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
			writeRow(row)
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
