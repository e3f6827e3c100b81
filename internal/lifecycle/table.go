package lifecycle

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/digidoc/internal/model"
)

var allStatuses = []model.Status{
	model.StatusReceived,
	model.StatusProcessing,
	model.StatusClassified,
	model.StatusPendingApproval,
	model.StatusApproved,
	model.StatusRejected,
	model.StatusChangesRequested,
	model.StatusPublished,
	model.StatusSuperseded,
	model.StatusSoftDeleted,
	model.StatusPendingDeletion,
	model.StatusPurged,
}

// sources lists the states each event may be applied from.
var sources = map[model.Event]mapset.Set[model.Status]{
	model.EventStartProcessing:     mapset.NewSet(model.StatusReceived),
	model.EventClassify:            mapset.NewSet(model.StatusReceived, model.StatusProcessing),
	model.EventSubmitForApproval:   mapset.NewSet(model.StatusClassified),
	model.EventAutoPublish:         mapset.NewSet(model.StatusClassified),
	model.EventApprove:             mapset.NewSet(model.StatusPendingApproval),
	model.EventPublish:             mapset.NewSet(model.StatusApproved),
	model.EventReject:              mapset.NewSet(model.StatusPendingApproval),
	model.EventRequestChanges:      mapset.NewSet(model.StatusPendingApproval),
	model.EventReclassify:          mapset.NewSet(model.StatusRejected, model.StatusChangesRequested),
	model.EventReupload:            mapset.NewSet(model.StatusRejected, model.StatusChangesRequested, model.StatusPublished),
	model.EventSoftDelete:          liveStatuses(),
	model.EventRestore:             mapset.NewSet(model.StatusSoftDeleted, model.StatusPendingDeletion),
	model.EventPurge:               mapset.NewSet(model.StatusSoftDeleted, model.StatusPendingDeletion),
	model.EventMarkPendingDeletion: mapset.NewSet(model.StatusPublished, model.StatusSuperseded),
}

var actions = map[model.Event]model.Action{
	model.EventStartProcessing:     model.ActionStartProcessing,
	model.EventClassify:            model.ActionClassify,
	model.EventSubmitForApproval:   model.ActionSubmitForApproval,
	model.EventAutoPublish:         model.ActionAutoPublish,
	model.EventApprove:             model.ActionApprove,
	model.EventPublish:             model.ActionPublish,
	model.EventReject:              model.ActionReject,
	model.EventRequestChanges:      model.ActionRequestChanges,
	model.EventReclassify:          model.ActionReclassifyVersion,
	model.EventReupload:            model.ActionReupload,
	model.EventSoftDelete:          model.ActionSoftDelete,
	model.EventRestore:             model.ActionRestore,
	model.EventPurge:               model.ActionPurge,
	model.EventMarkPendingDeletion: model.ActionMarkPendingDeletion,
}

func liveStatuses() mapset.Set[model.Status] {
	set := mapset.NewSet(allStatuses...)
	set.Remove(model.StatusSoftDeleted)
	set.Remove(model.StatusPendingDeletion)
	set.Remove(model.StatusPurged)
	return set
}

// KnownEvent reports whether the event exists in the transition table.
func KnownEvent(event model.Event) bool {
	_, ok := sources[event]
	return ok
}

// Allowed reports whether event may be applied to a document in status from, ignoring guards.
func Allowed(from model.Status, event model.Event) bool {
	set, ok := sources[event]
	if !ok {
		return false
	}
	return set.Contains(from)
}

// Events returns the events that may be applied from the given status.
func Events(from model.Status) []model.Event {
	var events []model.Event
	for _, event := range orderedEvents {
		if sources[event].Contains(from) {
			events = append(events, event)
		}
	}
	return events
}

// AllEvents lists every event the machine accepts.
func AllEvents() []model.Event {
	return append([]model.Event(nil), orderedEvents...)
}

var orderedEvents = []model.Event{
	model.EventStartProcessing,
	model.EventClassify,
	model.EventSubmitForApproval,
	model.EventAutoPublish,
	model.EventApprove,
	model.EventPublish,
	model.EventReject,
	model.EventRequestChanges,
	model.EventReclassify,
	model.EventReupload,
	model.EventSoftDelete,
	model.EventRestore,
	model.EventPurge,
	model.EventMarkPendingDeletion,
}
