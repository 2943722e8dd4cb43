package conf

import "strings"

// NodeMeta describes a known sensor/camera node.
type NodeMeta struct {
	Label string
	Room  string
	Kind  string // sensor|camera
	Role  string // smoke|door_force|indoor|outdoor
}

// Known rooms in the monitored space.
const (
	RoomLivingRoom = "Living Room"
	RoomEntrance   = "Door Entrance Area"
)

// Canonical node ids.
const (
	NodeSmokeLiving = "mq2_living"
	NodeSmokeDoor   = "mq2_door"
	NodeDoorForce   = "door_force"
	NodeCamIndoor   = "cam_indoor"
	NodeCamOutdoor  = "cam_outdoor"
)

// nodeRegistry maps canonical node ids to their metadata.
var nodeRegistry = map[string]NodeMeta{
	NodeSmokeLiving: {Label: "MQ-2 Smoke Sensor", Room: RoomLivingRoom, Kind: "sensor", Role: "smoke"},
	NodeSmokeDoor:   {Label: "MQ-2 Smoke Sensor", Room: RoomEntrance, Kind: "sensor", Role: "smoke"},
	NodeDoorForce:   {Label: "Door-Force Sensor", Room: RoomEntrance, Kind: "sensor", Role: "door_force"},
	NodeCamIndoor:   {Label: "Indoor Camera", Room: RoomLivingRoom, Kind: "camera", Role: "indoor"},
	NodeCamOutdoor:  {Label: "Outdoor Camera", Room: RoomEntrance, Kind: "camera", Role: "outdoor"},
}

// nodeAliases maps historical or sloppy node ids to canonical ones. Lookup
// happens after normalization, so alias keys are already normalized form.
var nodeAliases = map[string]string{
	"mq2_living_room":   NodeSmokeLiving,
	"mq2_livingroom":    NodeSmokeLiving,
	"mq2_kitchen":       NodeSmokeLiving,
	"mq2_entrance":      NodeSmokeDoor,
	"mq2_door_entrance": NodeSmokeDoor,
	"door_node":         NodeDoorForce,
	"doorforce":         NodeDoorForce,
	"door_force_sensor": NodeDoorForce,
	"cam_inside":        NodeCamIndoor,
	"cam_outside":       NodeCamOutdoor,
}

// NormalizeNodeID lowercases the raw id, converts spaces and dashes to
// underscores, strips everything outside [a-z0-9_], and resolves aliases.
// Returns "" for inputs that normalize to nothing.
func NormalizeNodeID(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")

	var b strings.Builder
	for _, ch := range s {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			b.WriteRune(ch)
		}
	}
	s = b.String()

	if canonical, ok := nodeAliases[s]; ok {
		return canonical
	}
	return s
}

// GetNodeMeta returns metadata for a canonical node id. Unregistered nodes
// get a best-effort placeholder so ingestion never fails on an unknown node.
func GetNodeMeta(nodeID string) NodeMeta {
	if meta, ok := nodeRegistry[nodeID]; ok {
		return meta
	}
	return NodeMeta{Label: nodeID, Kind: "unknown"}
}

// KnownNodeIDs returns the canonical ids of all registered nodes.
func KnownNodeIDs() []string {
	ids := make([]string, 0, len(nodeRegistry))
	for id := range nodeRegistry {
		ids = append(ids, id)
	}
	return ids
}
