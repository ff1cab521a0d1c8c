package db

import (
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

const testSchema = `CREATE TABLE IF NOT EXISTS channels (name text, id integer, length integer);
CREATE TABLE IF NOT EXISTS sensor_1 (timestamp double, data blob);`

func openTestDB(t *testing.T) *BotDB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"), ModeCreate)
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { test.That(t, d.Close(), test.ShouldBeNil) })
	test.That(t, d.Setup(testSchema), test.ShouldBeNil)
	return d
}

func TestOpenValidation(t *testing.T) {
	_, err := Open("test.db", Mode("x"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unrecognized mode")

	_, err = Open(filepath.Join("no", "such", "dir", "test.db"), ModeCreate)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "directory does not exist")
}

func TestSetupAndTables(t *testing.T) {
	d := openTestDB(t)
	names := d.Tables()
	test.That(t, names, test.ShouldContain, "channels")
	test.That(t, names, test.ShouldContain, "sensor_1")

	_, err := d.Table("nope")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestUpdateAndRetrieve(t *testing.T) {
	d := openTestDB(t)
	table, err := d.Table("sensor_1")
	test.That(t, err, test.ShouldBeNil)

	var values [][]interface{}
	for i := 0; i < 5; i++ {
		values = append(values, []interface{}{
			float64(i), []float64{float64(i), float64(i) * 2},
		})
	}
	err = table.Update(
		"INSERT INTO __TABLE__ ({timestamp}, {data}) VALUES (?,?)", values)
	test.That(t, err, test.ShouldBeNil)

	rows, err := table.Retrieve(
		"SELECT {timestamp}, {data} FROM __TABLE__ WHERE timestamp > 1 AND timestamp < 4")
	test.That(t, err, test.ShouldBeNil)

	var got [][]interface{}
	for rows.Next() {
		got = append(got, rows.Values())
	}
	test.That(t, rows.Close(), test.ShouldBeNil)

	test.That(t, got, test.ShouldHaveLength, 2)
	test.That(t, got[0][0], test.ShouldEqual, 2.0)
	test.That(t, got[0][1], test.ShouldResemble, []float64{2, 4})
	test.That(t, got[1][0], test.ShouldEqual, 3.0)
	test.That(t, got[1][1], test.ShouldResemble, []float64{3, 6})
}

func TestUpdateUnknownColumn(t *testing.T) {
	d := openTestDB(t)
	table, err := d.Table("sensor_1")
	test.That(t, err, test.ShouldBeNil)

	err = table.Update("INSERT INTO __TABLE__ ({bogus}) VALUES (?)", nil)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `unknown column "bogus"`)
}

func TestTruncateMode(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "test.db")

	d, err := Open(filename, ModeCreate)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Setup(testSchema), test.ShouldBeNil)
	test.That(t, d.Close(), test.ShouldBeNil)

	d, err = Open(filename, ModeTruncate)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, d.Tables(), test.ShouldHaveLength, 0)
	test.That(t, d.Close(), test.ShouldBeNil)
}
