package sketch

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// SerialVersion is the version of the wire format written by MarshalBinary
const SerialVersion = 1

const familyID = 17

// Sketch records are protobuf-wire compatible, so unknown fields from newer writers are skipped
const (
	fieldSerialVersion protowire.Number = 1
	fieldFamily        protowire.Number = 2
	fieldItems         protowire.Number = 3
	fieldK             protowire.Number = 4
	fieldN             protowire.Number = 5
	fieldMinItem       protowire.Number = 6
	fieldMaxItem       protowire.Number = 7
	fieldLevel         protowire.Number = 8

	fieldLevelHeight protowire.Number = 1
	fieldLevelItem   protowire.Number = 2
)

// MarshalBinary serializes this sketch
func (s *ItemsSketch[T]) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 32+s.NumRetained()*10)
	buf = protowire.AppendTag(buf, fieldSerialVersion, protowire.VarintType)
	buf = protowire.AppendVarint(buf, SerialVersion)
	buf = protowire.AppendTag(buf, fieldFamily, protowire.VarintType)
	buf = protowire.AppendVarint(buf, familyID)
	buf = protowire.AppendTag(buf, fieldItems, protowire.BytesType)
	buf = protowire.AppendString(buf, s.items.Name())
	buf = protowire.AppendTag(buf, fieldK, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(s.k))
	buf = protowire.AppendTag(buf, fieldN, protowire.VarintType)
	buf = protowire.AppendVarint(buf, s.n)
	if s.IsEmpty() {
		return buf, nil
	}

	var scratch []byte
	scratch = s.items.AppendItem(scratch[:0], s.minItem)
	buf = protowire.AppendTag(buf, fieldMinItem, protowire.BytesType)
	buf = protowire.AppendBytes(buf, scratch)
	scratch = s.items.AppendItem(scratch[:0], s.maxItem)
	buf = protowire.AppendTag(buf, fieldMaxItem, protowire.BytesType)
	buf = protowire.AppendBytes(buf, scratch)

	var record []byte
	for h, level := range s.levels {
		if len(level) == 0 {
			continue
		}
		record = protowire.AppendTag(record[:0], fieldLevelHeight, protowire.VarintType)
		record = protowire.AppendVarint(record, uint64(h))
		for _, item := range level {
			scratch = s.items.AppendItem(scratch[:0], item)
			record = protowire.AppendTag(record, fieldLevelItem, protowire.BytesType)
			record = protowire.AppendBytes(record, scratch)
		}
		buf = protowire.AppendTag(buf, fieldLevel, protowire.BytesType)
		buf = protowire.AppendBytes(buf, record)
	}
	return buf, nil
}

// Unmarshal deserializes a sketch produced by MarshalBinary. Errors wrap ErrMalformed or ErrIncompatible.
func Unmarshal[T any](items Items[T], data []byte) (*ItemsSketch[T], error) {
	var (
		version, family, k, n uint64
		name                  string
		haveMin, haveMax      bool
		rawMin, rawMax        []byte
		rawLevels             [][]byte
	)
	for len(data) > 0 {
		num, typ, m := protowire.ConsumeTag(data)
		if m < 0 {
			return nil, malformed(protowire.ParseError(m))
		}
		data = data[m:]
		switch {
		case typ == protowire.VarintType && (num == fieldSerialVersion || num == fieldFamily || num == fieldK || num == fieldN):
			v, vm := protowire.ConsumeVarint(data)
			if vm < 0 {
				return nil, malformed(protowire.ParseError(vm))
			}
			switch num {
			case fieldSerialVersion:
				version = v
			case fieldFamily:
				family = v
			case fieldK:
				k = v
			case fieldN:
				n = v
			}
			m = vm
		case typ == protowire.BytesType && (num == fieldItems || num == fieldMinItem || num == fieldMaxItem || num == fieldLevel):
			b, bm := protowire.ConsumeBytes(data)
			if bm < 0 {
				return nil, malformed(protowire.ParseError(bm))
			}
			// items are decoded only once the header is known to match
			switch num {
			case fieldItems:
				name = string(b)
			case fieldMinItem:
				rawMin, haveMin = b, true
			case fieldMaxItem:
				rawMax, haveMax = b, true
			case fieldLevel:
				rawLevels = append(rawLevels, b)
			}
			m = bm
		default:
			m = protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, malformed(protowire.ParseError(m))
			}
		}
		data = data[m:]
	}

	if version == 0 {
		return nil, fmt.Errorf("%w: missing serial version", ErrMalformed)
	}
	if version != SerialVersion {
		return nil, fmt.Errorf("%w: serial version %d, expected %d", ErrIncompatible, version, SerialVersion)
	}
	if family != familyID {
		return nil, fmt.Errorf("%w: family %d, expected %d", ErrIncompatible, family, familyID)
	}
	if name != items.Name() {
		return nil, fmt.Errorf("%w: sketch of %q, expected %q", ErrIncompatible, name, items.Name())
	}
	if k > MaxK || !IsValidK(int(k)) {
		return nil, fmt.Errorf("%w: invalid k %d", ErrMalformed, k)
	}

	var levels [][]T
	for _, record := range rawLevels {
		var err error
		if levels, err = decodeLevel(items, record, levels); err != nil {
			return nil, err
		}
	}
	s := &ItemsSketch[T]{items: items, k: int(k), n: n, levels: levels}
	if len(s.levels) == 0 {
		s.levels = make([][]T, 1)
	}
	var weight uint64
	for h, level := range s.levels {
		weight += uint64(len(level)) << uint(h)
	}
	if weight != n {
		return nil, fmt.Errorf("%w: retained weight %d does not match n %d", ErrMalformed, weight, n)
	}
	if n > 0 {
		if !haveMin || !haveMax {
			return nil, fmt.Errorf("%w: missing min or max item", ErrMalformed)
		}
		minItem, err := items.DecodeItem(rawMin)
		if err != nil {
			return nil, err
		}
		maxItem, err := items.DecodeItem(rawMax)
		if err != nil {
			return nil, err
		}
		if items.Compare(minItem, maxItem) > 0 {
			return nil, fmt.Errorf("%w: min item exceeds max item", ErrMalformed)
		}
		s.minItem = minItem
		s.maxItem = maxItem
	}
	s.compress()
	return s, nil
}

func decodeLevel[T any](items Items[T], data []byte, levels [][]T) ([][]T, error) {
	height := -1
	var level []T
	for len(data) > 0 {
		num, typ, m := protowire.ConsumeTag(data)
		if m < 0 {
			return nil, malformed(protowire.ParseError(m))
		}
		data = data[m:]
		switch {
		case num == fieldLevelHeight && typ == protowire.VarintType:
			v, vm := protowire.ConsumeVarint(data)
			if vm < 0 {
				return nil, malformed(protowire.ParseError(vm))
			}
			if v > maxLevelHeight {
				return nil, fmt.Errorf("%w: level height %d", ErrMalformed, v)
			}
			height = int(v)
			m = vm
		case num == fieldLevelItem && typ == protowire.BytesType:
			b, bm := protowire.ConsumeBytes(data)
			if bm < 0 {
				return nil, malformed(protowire.ParseError(bm))
			}
			item, err := items.DecodeItem(b)
			if err != nil {
				return nil, err
			}
			level = append(level, item)
			m = bm
		default:
			m = protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return nil, malformed(protowire.ParseError(m))
			}
		}
		data = data[m:]
	}
	if height < 0 {
		return nil, fmt.Errorf("%w: level without height", ErrMalformed)
	}
	for len(levels) <= height {
		levels = append(levels, nil)
	}
	levels[height] = append(levels[height], level...)
	return levels, nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
