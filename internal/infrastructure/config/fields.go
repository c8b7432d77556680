package config

import "gopkg.in/yaml.v3"

// Field entries accept a short form: a bare sensor ID string instead of a
// mapping. The aliases below strip the UnmarshalYAML method so the full form
// can be decoded without recursion.

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *BinaryFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = BinaryFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain BinaryFieldConfig
	return node.Decode((*plain)(f))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *NumericFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = NumericFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain NumericFieldConfig
	return node.Decode((*plain)(f))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *TextFieldConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*f = TextFieldConfig{SensorID: node.Value}
		return nil
	}
	type plain TextFieldConfig
	return node.Decode((*plain)(f))
}
