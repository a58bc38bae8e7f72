package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentKey_RoundTrip(t *testing.T) {
	key := ComponentKey("hdfs", "datanode")
	assert.Equal(t, "hdfs/datanode", key)

	svc, comp := SplitComponentKey(key)
	assert.Equal(t, "hdfs", svc)
	assert.Equal(t, "datanode", comp)

	svc, comp = SplitComponentKey("datanode")
	assert.Empty(t, svc)
	assert.Equal(t, "datanode", comp)
}

func TestWizardSession_SeedsInstalledServices(t *testing.T) {
	catalog := &Catalog{Stacks: []Stack{{Name: "bigtop", Services: []ServiceDescriptor{
		{Name: "zookeeper", Installed: true},
		{Name: "hadoop"},
	}}}}

	w := NewWizardSession("s1", 2, CreationModePublic, catalog)

	assert.Equal(t, []string{"zookeeper"}, w.Selection.Names())
	assert.Empty(t, w.PendingServices())

	w.Selection.Add(ServiceDescriptor{Name: "hadoop"})
	pending := w.PendingServices()
	assert.Len(t, pending, 1)
	assert.Equal(t, "hadoop", pending[0].Name)
}

func TestWizardSession_HostsForAndSortedKeys(t *testing.T) {
	w := NewWizardSession("s1", 1, CreationModeInternal, &Catalog{})
	w.ComponentHosts["hdfs/namenode"] = []string{"nn"}
	w.ComponentHosts["hdfs/datanode"] = []string{"dn1", "dn2"}
	w.ComponentHosts["yarn/resourcemanager"] = []string{"rm"}

	assert.Equal(t, map[string][]string{
		"namenode": {"nn"},
		"datanode": {"dn1", "dn2"},
	}, w.HostsFor("hdfs"))
	assert.Equal(t, []string{"hdfs/datanode", "hdfs/namenode", "yarn/resourcemanager"}, SortedComponentKeys(w.ComponentHosts))
}

func TestWizardSession_CloneIsIndependent(t *testing.T) {
	w := NewWizardSession("s1", 1, CreationModeInternal, &Catalog{})
	w.Selection.Add(ServiceDescriptor{Name: "hive"})
	w.ComponentHosts["hive/hiveserver2"] = []string{"h1"}
	w.Snapshots["hive"] = []ConfigSection{{Name: "hive-site", Properties: []Property{{Name: "p", Value: "1"}}}}

	cp := w.Clone()
	cp.Selection.Remove("hive")
	cp.ComponentHosts["hive/hiveserver2"][0] = "x"
	cp.Snapshots["hive"][0].Properties[0].Value = "x"

	assert.True(t, w.Selection.Has("hive"))
	assert.Equal(t, "h1", w.ComponentHosts["hive/hiveserver2"][0])
	assert.Equal(t, "1", w.Snapshots["hive"][0].Properties[0].Value)
	assert.Same(t, w.Catalog, cp.Catalog)
}

func TestJSONB_ScanAndValue(t *testing.T) {
	var j JSONB
	assert.NoError(t, j.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, float64(1), j["a"])

	assert.NoError(t, j.Scan(nil))
	assert.Nil(t, j)
	assert.Error(t, j.Scan(42))

	v, err := JSONB(nil).Value()
	assert.NoError(t, err)
	assert.Nil(t, v)
}

func TestJobStatus_Terminal(t *testing.T) {
	assert.True(t, JobStatusSuccess.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
	assert.False(t, JobStatusProcessing.Terminal())
	assert.False(t, JobStatusPending.Terminal())
}

func TestCommand_Valid(t *testing.T) {
	assert.True(t, CommandAdd.Valid())
	assert.True(t, CommandCustom.Valid())
	assert.False(t, Command("Explode").Valid())
	assert.True(t, CommandLevelComponent.Valid())
	assert.False(t, CommandLevel("rack").Valid())
}
