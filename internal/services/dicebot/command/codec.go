package command

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	apperrors "github.com/louisbranch/dicebot/internal/platform/errors"
	"gopkg.in/yaml.v3"
)

type configEnvelope struct {
	Kind   Kind `yaml:"kind"`
	Config any  `yaml:"config"`
}

type configEnvelopeIn struct {
	Kind   Kind      `yaml:"kind"`
	Config yaml.Node `yaml:"config"`
}

type stateEnvelope struct {
	ButtonValue string `yaml:"buttonValue,omitempty"`
	Data        any    `yaml:"data"`
}

type stateEnvelopeIn struct {
	ButtonValue string    `yaml:"buttonValue,omitempty"`
	Data        yaml.Node `yaml:"data"`
}

// EncodeConfig serializes cfg with its kind.
func EncodeConfig(cfg Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	data, err := yaml.Marshal(configEnvelope{Kind: cfg.Kind(), Config: cfg})
	if err != nil {
		return nil, fmt.Errorf("encode %s config: %w", cfg.Kind(), err)
	}
	return data, nil
}

// DecodeConfig restores a config written by EncodeConfig. Unknown kinds and
// malformed blobs yield a CodeUnknownRecordFormat error.
func DecodeConfig(blob []byte) (Config, error) {
	var envelope configEnvelopeIn
	if err := yaml.Unmarshal(blob, &envelope); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknownRecordFormat, "decode config envelope", err)
	}

	var cfg Config
	switch envelope.Kind {
	case KindCustomDice:
		cfg = &CustomDiceConfig{}
	case KindSumCustomSet:
		cfg = &SumCustomSetConfig{}
	case KindRerollAnswer:
		cfg = &RerollAnswerConfig{}
	default:
		return nil, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("unknown config kind %q", envelope.Kind))
	}
	if envelope.Config.Kind == 0 {
		return nil, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("%s config body is missing", envelope.Kind))
	}
	if err := envelope.Config.Decode(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("decode %s config", envelope.Kind), err)
	}
	return cfg, nil
}

// EncodeState serializes state and returns the kind to store alongside.
func EncodeState(state State) (StateKind, []byte, error) {
	data := state.Data
	if data == nil {
		data = EmptyState{}
	}
	blob, err := yaml.Marshal(stateEnvelope{ButtonValue: state.ButtonValue, Data: data})
	if err != nil {
		return "", nil, fmt.Errorf("encode %s state: %w", data.StateKind(), err)
	}
	return data.StateKind(), blob, nil
}

// DecodeState restores a state written by EncodeState.
func DecodeState(kind StateKind, blob []byte) (State, error) {
	var envelope stateEnvelopeIn
	if err := yaml.Unmarshal(blob, &envelope); err != nil {
		return State{}, apperrors.Wrap(apperrors.CodeUnknownRecordFormat, "decode state envelope", err)
	}

	state := State{ButtonValue: envelope.ButtonValue}
	switch kind {
	case StateEmpty:
		state.Data = EmptyState{}
		return state, nil
	case StateSumCustomSet:
		var data SumCustomSetState
		if err := decodeStateData(&envelope.Data, &data); err != nil {
			return State{}, err
		}
		state.Data = data
	case StateReroll:
		var data RerollState
		if err := decodeStateData(&envelope.Data, &data); err != nil {
			return State{}, err
		}
		state.Data = data
	default:
		return State{}, apperrors.New(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("unknown state kind %q", kind))
	}
	return state, nil
}

func decodeStateData(node *yaml.Node, out StateData) error {
	if node.Kind == 0 {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return apperrors.Wrap(apperrors.CodeUnknownRecordFormat, fmt.Sprintf("decode %s state", out.StateKind()), err)
	}
	return nil
}

// Fingerprint hashes the fields of cfg that shape its button message. Two
// configs that render the same layout hash equal.
func Fingerprint(cfg Config) uint64 {
	blob, err := yaml.Marshal(cfg)
	if err != nil {
		return 0
	}
	digest := xxhash.New()
	_, _ = digest.WriteString(string(cfg.Kind()))
	_, _ = digest.Write([]byte{0x1e})
	_, _ = digest.Write(blob)
	return digest.Sum64()
}
