package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// SnowflakeNode returns the process-wide snowflake node. The node id comes
// from SNOWFLAKE_NODE and defaults to 1 when unset or invalid.
func SnowflakeNode() *snowflake.Node {
	nodeOnce.Do(func() {
		n, err := NewSnowflakeNode(nodeIDFromEnv())
		if err != nil {
			// out-of-range SNOWFLAKE_NODE
			n, _ = NewSnowflakeNode(1)
		}
		node = n
	})
	return node
}

// NewSnowflakeNode constructs a node for nodeID (0..1023).
func NewSnowflakeNode(nodeID int64) (*snowflake.Node, error) {
	return snowflake.NewNode(nodeID)
}

// NewSnowflakeID generates a snowflake ID string from the process-wide node.
func NewSnowflakeID() string {
	return SnowflakeNode().Generate().String()
}

func nodeIDFromEnv() int64 {
	v := os.Getenv("SNOWFLAKE_NODE")
	if v == "" {
		return 1
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 1
	}
	return id
}
