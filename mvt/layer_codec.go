package mvt

import (
	"fmt"
	"sort"
)

const (
	layerFieldVersion  = 15
	layerFieldName     = 1
	layerFieldFeatures = 2
	layerFieldKeys     = 3
	layerFieldValues   = 4
	layerFieldExtent   = 5

	featureFieldID       = 1
	featureFieldTags     = 2
	featureFieldType     = 3
	featureFieldGeometry = 4
)

// EncodeLayer serializes layer into its protobuf Layer message bytes.
// Geometry on each feature must already be projected into tile-pixel
// space ([0, layer.Extent]); EncodeLayer does not project or clip.
func EncodeLayer(layer *Layer) ([]byte, error) {
	version := layer.Version
	if version == 0 {
		version = DefaultVersion
	}
	extent := layer.Extent
	if extent == 0 {
		extent = DefaultExtent
	}

	tables := newKeyValueTables()

	// encode features first so the key/value tables are fully populated
	// before being written out, and so tags reference stable indices.
	type encodedFeature struct {
		id       uint64
		tags     []uint32
		geomType GeomType
		commands []uint32
	}
	encoded := make([]encodedFeature, 0, len(layer.Features))

	for _, feature := range layer.Features {
		properties, err := feature.Properties()
		if err != nil {
			return nil, fmt.Errorf("mvt: encoding feature %d properties: %w", feature.ID, err)
		}
		keys := make([]string, 0, len(properties))
		for k := range properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tags := tables.tags(properties, keys)

		geometry, err := feature.Geometry()
		if err != nil {
			return nil, fmt.Errorf("mvt: encoding feature %d geometry: %w", feature.ID, err)
		}
		commands, geomType, err := encodeGeometry(geometry)
		if err != nil {
			return nil, fmt.Errorf("mvt: encoding feature %d geometry: %w", feature.ID, err)
		}

		encoded = append(encoded, encodedFeature{
			id:       feature.ID,
			tags:     tags,
			geomType: geomType,
			commands: commands,
		})
	}

	var w pbWriter
	w.stringField(layerFieldName, layer.Name)

	for _, ef := range encoded {
		var fw pbWriter
		if ef.id != 0 {
			fw.varintField(featureFieldID, ef.id)
		}
		fw.packedUint32Field(featureFieldTags, ef.tags)
		fw.varintField(featureFieldType, uint64(ef.geomType))
		fw.packedUint32Field(featureFieldGeometry, ef.commands)
		w.bytesField(layerFieldFeatures, fw.buf)
	}

	for _, k := range tables.keys {
		w.stringField(layerFieldKeys, k)
	}
	for _, v := range tables.values {
		w.bytesField(layerFieldValues, encodeValue(v))
	}

	w.varintField(layerFieldExtent, uint64(extent))
	w.varintField(layerFieldVersion, uint64(version))

	return w.buf, nil
}

// decodeLayerBytes parses a Layer message's framing, key/value tables and
// per-feature tag/command-stream layout into a Layer. It does not decode
// any feature's geometry or properties; that happens lazily, the first
// time Feature.Geometry or Feature.Properties is called, so a caller
// that only wants a handful of features out of a large layer never pays
// to materialize the rest. transform, if non-nil, is stored on every
// feature and applied to its geometry at that same first-access point.
func decodeLayerBytes(data []byte, transform GeometryTransform) (*Layer, error) {
	layer := &Layer{}
	var keys []string
	var values []interface{}
	var rawFeatures [][]byte

	err := parseFields(data, func(f pbField) error {
		switch f.number {
		case layerFieldName:
			layer.Name = string(f.payload)
		case layerFieldVersion:
			layer.Version = uint32(f.varint)
		case layerFieldExtent:
			layer.Extent = uint32(f.varint)
		case layerFieldKeys:
			keys = append(keys, string(f.payload))
		case layerFieldValues:
			v, err := decodeValue(f.payload)
			if err != nil {
				return fmt.Errorf("mvt: decoding value table entry: %w", err)
			}
			values = append(values, v)
		case layerFieldFeatures:
			rawFeatures = append(rawFeatures, f.payload)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mvt: decoding layer: %w", err)
	}

	for _, raw := range rawFeatures {
		feature, err := parseFeatureFrame(raw, keys, values, transform)
		if err != nil {
			return nil, fmt.Errorf("mvt: decoding feature in layer %q: %w", layer.Name, err)
		}
		layer.Features = append(layer.Features, feature)
	}

	return layer, nil
}

// parseFeatureFrame parses one Feature message's ID, tag indices,
// geometry type and command stream — the cheap framing every feature
// needs regardless of whether a caller ever looks at it — and defers
// resolving tag indices into a property map and walking the command
// stream into orb geometry until the returned Feature's Properties or
// Geometry is actually called.
func parseFeatureFrame(data []byte, keys []string, values []interface{}, transform GeometryTransform) (*Feature, error) {
	raw := &rawFeature{keys: keys, values: values, transform: transform}
	feature := &Feature{raw: raw}

	err := parseFields(data, func(f pbField) error {
		switch f.number {
		case featureFieldID:
			feature.ID = f.varint
		case featureFieldTags:
			parsed, err := parsePackedUint32(f.payload)
			if err != nil {
				return err
			}
			raw.tags = parsed
		case featureFieldType:
			raw.geomType = GeomType(f.varint)
		case featureFieldGeometry:
			parsed, err := parsePackedUint32(f.payload)
			if err != nil {
				return err
			}
			raw.commands = parsed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return feature, nil
}
