package catalog_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/intellect4all/reldb/catalog"
	"github.com/intellect4all/reldb/common"
	"github.com/intellect4all/reldb/storage"
)

func employeeDesc() *common.TupleDesc {
	return common.NewTupleDesc(
		common.FieldSpec{Name: "id", Type: common.IntType},
		common.FieldSpec{Name: "name", Type: common.StringType},
	)
}

func TestAddTableRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	desc := employeeDesc()
	hf, err := storage.NewHeapFile(fs, "/employees.db", desc, 256, nil)
	require.NoError(t, err)

	cat := catalog.New()
	cat.AddTable(hf, "employee", "id")

	gotFile, err := cat.GetDatabaseFile(hf.ID())
	require.NoError(t, err)
	require.Same(t, hf, gotFile)

	gotDesc, err := cat.GetTupleDesc(hf.ID())
	require.NoError(t, err)
	require.True(t, gotDesc.Equals(desc))

	id, err := cat.GetTableID("employee")
	require.NoError(t, err)
	require.Equal(t, hf.ID(), id)

	name, err := cat.GetTableName(hf.ID())
	require.NoError(t, err)
	require.Equal(t, "employee", name)

	pk, err := cat.PrimaryKey(hf.ID())
	require.NoError(t, err)
	require.Equal(t, "id", pk)
}

func TestUnknownTableLookupsFail(t *testing.T) {
	cat := catalog.New()

	_, err := cat.GetDatabaseFile(999)
	require.Error(t, err)

	_, err = cat.GetTableID("ghost")
	require.Error(t, err)

	_, err = cat.GetTableName(999)
	require.Error(t, err)

	_, err = cat.PrimaryKey(999)
	require.Error(t, err)
}
