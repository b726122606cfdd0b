package descriptor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"gopkg.in/yaml.v3"
)

// StampOptions controls which run fields Stamp writes.
type StampOptions struct {
	// CPUCount overrides the detected logical CPU count when positive.
	CPUCount int
	// Now is recorded as start_time.
	Now time.Time
	// Force overwrites fields already present in the document.
	Force bool
}

// DetectCPUCount returns the number of logical CPUs of this host.
func DetectCPUCount(ctx context.Context) (int, error) {
	n, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return 0, fmt.Errorf("counting cpus: %w", err)
	}

	if n < 1 {
		return 0, fmt.Errorf("counting cpus: got %d", n)
	}

	return n, nil
}

// Stamp fills in cpu_count and start_time on a descriptor document, keeping
// every other field, comment and ordering intact.
func Stamp(ctx context.Context, data []byte, opts StampOptions) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("descriptor must be a mapping")
	}

	if opts.Force || lookup(root, "cpu_count") == nil {
		count := opts.CPUCount
		if count <= 0 {
			var err error

			count, err = DetectCPUCount(ctx)
			if err != nil {
				return nil, err
			}
		}

		setScalar(root, "cpu_count", strconv.Itoa(count), "!!int")
	}

	if opts.Force || lookup(root, "start_time") == nil {
		now := opts.Now
		if now.IsZero() {
			now = time.Now()
		}

		setScalar(root, "start_time", strconv.FormatInt(now.Unix(), 10), "!!int")
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}

	return out, nil
}

func lookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}

	return nil
}

func setScalar(mapping *yaml.Node, key, value, tag string) {
	if node := lookup(mapping, key); node != nil {
		node.Kind = yaml.ScalarNode
		node.Tag = tag
		node.Value = value
		node.Content = nil

		return
	}

	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value},
	)
}
