package config

import (
	"fmt"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// parseKDL turns a storyquery.kdl document into a Config, starting from
// Default() and overwriting only the fields the document sets.
//
// Expected shape:
//
//	loader {
//	    workers 8
//	    channel_capacity 4096
//	}
//	search {
//	    writer_buffer_bytes 1073741824
//	    cache_root "cache"
//	    result_limit 32
//	    score_threshold 10.0
//	}
func parseKDL(content string) (*Config, error) {
	cfg := Default()

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse storyquery.kdl: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "loader":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Loader.Workers = v
					}
				case "channel_capacity":
					if v, ok := firstIntArg(cn); ok {
						cfg.Loader.ChannelCapacity = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "writer_buffer_bytes":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.WriterBufferBytes = int64(v)
					}
				case "cache_root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Search.CacheRoot = s
					}
				case "result_limit":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.ResultLimit = v
					}
				case "score_threshold":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Search.ScoreThreshold = v
					}
				}
			}
		}
	}

	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
