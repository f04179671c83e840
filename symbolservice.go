package adsclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/plcbus/adsclient/internal/ads"
	"github.com/plcbus/adsclient/internal/marshal"
	"github.com/plcbus/adsclient/internal/symbols"
)

// ReadUploadInfo reads the symbol/type table counts and byte lengths from
// the target and refreshes the metadata copy.
func (c *Client) ReadUploadInfo(ctx context.Context) (*UploadInfo, error) {
	data, err := c.ReadRaw(ctx, ads.IndexGroupSymbolUploadInfo2, 0, 24)
	if err != nil {
		return nil, err
	}

	info := &UploadInfo{}
	if err := info.UnmarshalBinary(data); err != nil {
		return nil, protocolError("read upload info", err)
	}

	c.metaMu.Lock()
	c.meta.UploadInfo = info
	c.metaMu.Unlock()
	return info, nil
}

// ReadSymbolVersion reads the 1-byte PLC symbol table version.
func (c *Client) ReadSymbolVersion(ctx context.Context) (uint8, error) {
	data, err := c.ReadRaw(ctx, ads.IndexGroupSymbolVersion, 0, 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 1 {
		return 0, protocolError("read symbol version", fmt.Errorf("empty response"))
	}
	return data[0], nil
}

// GetSymbol resolves one symbol descriptor by variable path. Results for
// the configured target are cached unless caching is disabled; requests
// with an overridden target always bypass the cache.
func (c *Client) GetSymbol(ctx context.Context, name string, opts ...RequestOption) (*Symbol, error) {
	_, overridden, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	useCache := !c.settings.DisableCaching && !overridden

	if useCache {
		if sym := c.table.Symbol(name); sym != nil {
			return sym, nil
		}
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupSymbolInfoByNameEx, 0,
		ads.ReadLengthUnknown, cString(name), opts...)
	if err != nil {
		return nil, err
	}

	sym, err := c.parser.ParseSymbolEntry(data)
	if err != nil {
		return nil, protocolError("get symbol", err)
	}

	if useCache {
		c.table.PutSymbol(sym)
	}
	return sym, nil
}

// GetSymbols enumerates the full symbol table in one bulk upload. The
// result replaces the symbol cache unless caching is disabled (the
// DisableCaching rule applies even when the request targets the configured
// system).
func (c *Client) GetSymbols(ctx context.Context) ([]*Symbol, error) {
	info, err := c.uploadInfo(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.ReadRaw(ctx, ads.IndexGroupSymbolUpload, 0, info.SymbolLength)
	if err != nil {
		return nil, err
	}

	syms, err := c.parser.ParseSymbols(data)
	if err != nil {
		return nil, protocolError("get symbols", err)
	}

	if !c.settings.DisableCaching {
		c.table.SetSymbols(syms)
	}
	c.logger.Debug("symbol table uploaded", "count", len(syms))
	return syms, nil
}

// FindSymbols returns cached symbols whose path contains pattern
// (case-insensitive). The full table is uploaded first when the cache does
// not hold a complete enumeration yet.
func (c *Client) FindSymbols(ctx context.Context, pattern string) ([]*Symbol, error) {
	if !c.table.HasAllSymbols() {
		if _, err := c.GetSymbols(ctx); err != nil {
			return nil, err
		}
	}
	return c.table.FindSymbols(pattern), nil
}

// GetDataTypes enumerates the full data-type table in one bulk upload.
// Entries are flat declarations; use GetDataType to build complete trees.
func (c *Client) GetDataTypes(ctx context.Context) ([]*DataType, error) {
	info, err := c.uploadInfo(ctx)
	if err != nil {
		return nil, err
	}

	data, err := c.ReadRaw(ctx, ads.IndexGroupSymbolDataTypeUpload, 0, info.DataTypeLength)
	if err != nil {
		return nil, err
	}

	types, err := c.parser.ParseDataTypes(data)
	if err != nil {
		return nil, protocolError("get data types", err)
	}

	if !c.settings.DisableCaching {
		c.table.SetDataTypes(types)
	}
	c.logger.Debug("data type table uploaded", "count", len(types))
	return types, nil
}

func (c *Client) uploadInfo(ctx context.Context) (*UploadInfo, error) {
	c.metaMu.RLock()
	info := c.meta.UploadInfo
	c.metaMu.RUnlock()
	if info != nil {
		return info, nil
	}
	return c.ReadUploadInfo(ctx)
}

// getDataTypeDeclaration fetches one flat type declaration by name.
func (c *Client) getDataTypeDeclaration(ctx context.Context, name string, opts []RequestOption) (*symbols.DataType, error) {
	_, overridden, err := c.resolveTarget(opts)
	if err != nil {
		return nil, err
	}
	useCache := !c.settings.DisableCaching && !overridden

	if useCache {
		if dt := c.table.DataType(name); dt != nil {
			return dt, nil
		}
	}

	data, err := c.ReadWriteRaw(ctx, ads.IndexGroupDataTypeInfoByNameEx, 0,
		ads.ReadLengthUnknown, cString(name), opts...)
	if err != nil {
		return nil, err
	}

	dt, err := c.parser.ParseDataTypeEntry(data)
	if err != nil {
		return nil, protocolError("get data type declaration", err)
	}

	if useCache {
		c.table.PutDataType(dt)
	}
	return dt, nil
}

// GetDataType builds the complete recursive type tree for a type name. The
// returned root has an empty Name and its Type carries the declared name.
func (c *Client) GetDataType(ctx context.Context, name string, opts ...RequestOption) (*DataType, error) {
	built, err := c.buildDataType(ctx, name, 0, map[string]bool{}, opts)
	if err != nil {
		return nil, err
	}
	root := *built
	root.Name = ""
	return &root, nil
}

// buildDataType recursively resolves a declared type name into a complete
// tree. knownSize is the declared size from the referencing site, used to
// synthesise base-type nodes for targets (TC2) that do not list primitives
// in their type table. The inProgress set guards against cyclic sub-item
// references, which PLC type tables are not expected to contain.
func (c *Client) buildDataType(ctx context.Context, name string, knownSize uint32, inProgress map[string]bool, opts []RequestOption) (*symbols.DataType, error) {
	key := strings.ToLower(name)
	if inProgress[key] {
		return nil, protocolError("build data type",
			fmt.Errorf("cyclic type reference through %q", name))
	}
	inProgress[key] = true
	defer delete(inProgress, key)

	decl, err := c.getDataTypeDeclaration(ctx, name, opts)
	if err != nil {
		// TC2 compatibility: synthesise known primitives and pseudo-types
		// the target does not describe.
		if adsCode(err) == ads.ErrDeviceSymbolNotFound {
			if marshal.IsPseudoType(name) {
				size := knownSize
				if size == 0 {
					size = 8
				}
				base, rerr := marshal.ResolvePseudoType(name, size)
				if rerr != nil {
					return nil, marshalError("build data type", rerr)
				}
				return synthesizeBaseType(base, size), nil
			}
			if marshal.IsBaseType(name) {
				return synthesizeBaseType(name, knownSize), nil
			}
		}
		return nil, err
	}

	switch {
	case len(decl.SubItems) > 0:
		node := &symbols.DataType{
			Version:    decl.Version,
			HashValue:  decl.HashValue,
			Size:       decl.Size,
			DataTypeID: decl.DataTypeID,
			Flags:      decl.Flags,
			Type:       decl.Name,
			Comment:    decl.Comment,
			Attributes: decl.Attributes,
			Methods:    decl.Methods,
			TypeGUID:   decl.TypeGUID,
		}
		for _, sub := range decl.SubItems {
			built, err := c.buildDataType(ctx, sub.Type, sub.Size, inProgress, opts)
			if err != nil {
				return nil, err
			}
			child := *built
			child.Name = sub.Name
			child.Offset = sub.Offset
			child.HashValue = sub.HashValue
			child.Comment = sub.Comment
			if sub.IsBitValue() {
				child.Flags |= ads.DataTypeFlagBitValues
			}
			if len(sub.Attributes) > 0 {
				child.Attributes = sub.Attributes
			}
			node.SubItems = append(node.SubItems, &child)
		}
		return node, nil

	case len(decl.ArrayInfos) > 0:
		elemCount := uint32(1)
		for _, dim := range decl.ArrayInfos {
			elemCount *= dim.Length
		}
		elemSize := decl.Size
		if elemCount > 0 {
			elemSize = decl.Size / elemCount
		}

		elem, err := c.buildDataType(ctx, decl.Type, elemSize, inProgress, opts)
		if err != nil {
			return nil, err
		}
		node := *elem
		node.ArrayInfos = append(append([]symbols.ArrayInfo{}, decl.ArrayInfos...), elem.ArrayInfos...)
		return &node, nil

	case marshal.IsPseudoType(decl.Name):
		base, err := marshal.ResolvePseudoType(decl.Name, decl.Size)
		if err != nil {
			return nil, marshalError("build data type", err)
		}
		return synthesizeBaseType(base, decl.Size), nil

	case decl.HasFlag(ads.DataTypeFlagEnumInfos) && decl.DataTypeID != ads.DataTypeVoid:
		base, err := c.buildDataType(ctx, decl.Type, decl.Size, inProgress, opts)
		if err != nil {
			return nil, err
		}
		node := *base
		node.Flags |= ads.DataTypeFlagEnumInfos
		node.Enums = decl.Enums
		return &node, nil

	case marshal.IsBaseType(decl.Name):
		node := &symbols.DataType{
			Type:       decl.Name,
			Size:       decl.Size,
			DataTypeID: decl.DataTypeID,
			Flags:      decl.Flags,
			Comment:    decl.Comment,
		}
		return node, nil

	case decl.Type == "" || strings.EqualFold(decl.Type, decl.Name):
		// Terminal node without further indirection: an empty struct,
		// function block or interface.
		node := &symbols.DataType{
			Type:       decl.Name,
			Size:       decl.Size,
			DataTypeID: decl.DataTypeID,
			Flags:      decl.Flags,
			Comment:    decl.Comment,
			Methods:    decl.Methods,
		}
		return node, nil

	default:
		// Alias: follow the declared type.
		return c.buildDataType(ctx, decl.Type, decl.Size, inProgress, opts)
	}
}

// synthesizeBaseType fabricates a base-type node for primitives the target
// does not describe.
func synthesizeBaseType(name string, knownSize uint32) *symbols.DataType {
	size := knownSize
	if tabled, ok := marshal.BaseTypeSize(name); ok && tabled > 0 {
		size = tabled
	}
	if size == 0 {
		size = marshal.StringCapacity(name, 0)
	}
	return &symbols.DataType{
		Type:       name,
		Size:       size,
		DataTypeID: baseDataTypeID(name),
	}
}

func baseDataTypeID(name string) ads.DataTypeID {
	switch strings.ToUpper(name) {
	case "SINT":
		return ads.DataTypeInt8
	case "BYTE", "USINT", "BOOL":
		return ads.DataTypeUInt8
	case "INT":
		return ads.DataTypeInt16
	case "WORD", "UINT":
		return ads.DataTypeUInt16
	case "DINT":
		return ads.DataTypeInt32
	case "DWORD", "UDINT", "TIME", "TOD", "TIME_OF_DAY", "DATE", "DT", "DATE_AND_TIME":
		return ads.DataTypeUInt32
	case "LINT":
		return ads.DataTypeInt64
	case "LWORD", "ULINT", "LTIME":
		return ads.DataTypeUInt64
	case "REAL":
		return ads.DataTypeReal32
	case "LREAL":
		return ads.DataTypeReal64
	case "BIT":
		return ads.DataTypeBit
	default:
		if strings.HasPrefix(strings.ToUpper(name), "WSTRING") {
			return ads.DataTypeWString
		}
		if strings.HasPrefix(strings.ToUpper(name), "STRING") {
			return ads.DataTypeString
		}
		return ads.DataTypeBigType
	}
}

// cString appends the terminating NUL the by-name index groups expect.
func cString(s string) []byte {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return buf
}
