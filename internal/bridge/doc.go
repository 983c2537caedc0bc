// Package bridge owns the device fleet.
//
// The Manager loads the device registry (pdus.json), builds a transport and
// a poller per device, routes MQTT outlet commands to the right poller and
// runs the slow housekeeping schedule: retained identity refresh, the
// hourly retention sweep and weekly energy reports.
//
// Devices can be added and removed while the bridge runs. Removing a
// device stops its poller, drops its rule and outlet-name files and
// rewrites the registry; nothing else restarts.
package bridge
