package payload

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulntor/xploit/pkg/console"
	"github.com/vulntor/xploit/pkg/module"
)

func TestTrafficCapture_Raw(t *testing.T) {
	dir := t.TempDir()
	p := NewTrafficCapture().(*TrafficCapture)
	require.NoError(t, p.SetProperty("OutputDir", dir))
	require.NoError(t, p.SetProperty("Prefix", "cap-"))
	require.NoError(t, module.CheckRequiredProperties(p, nil))

	send, receive, err := p.OpenFilters()
	require.NoError(t, err)
	send([]byte("hello "))
	send([]byte("world"))
	receive([]byte("HELLO WORLD"))

	_, _, err = p.OpenFilters()
	require.Error(t, err, "already open")
	require.NoError(t, p.CloseFilters())

	sendFiles, err := filepath.Glob(filepath.Join(dir, "cap-*-send.bin"))
	require.NoError(t, err)
	require.Len(t, sendFiles, 1)
	data, err := os.ReadFile(sendFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	recvFiles, err := filepath.Glob(filepath.Join(dir, "cap-*-receive.bin"))
	require.NoError(t, err)
	require.Len(t, recvFiles, 1)
	data, err = os.ReadFile(recvFiles[0])
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", string(data))
}

func TestTrafficCapture_BackToBackCapturesDoNotShareFiles(t *testing.T) {
	dir := t.TempDir()
	open := func(payload string) {
		p := NewTrafficCapture().(*TrafficCapture)
		require.NoError(t, p.SetProperty("OutputDir", dir))
		require.NoError(t, p.SetProperty("Prefix", "cap-"))
		send, _, err := p.OpenFilters()
		require.NoError(t, err)
		send([]byte(payload))
		require.NoError(t, p.CloseFilters())
	}
	open("first")
	open("second")

	sendFiles, err := filepath.Glob(filepath.Join(dir, "cap-*-send.bin"))
	require.NoError(t, err)
	require.Len(t, sendFiles, 2)
	recvFiles, err := filepath.Glob(filepath.Join(dir, "cap-*-receive.bin"))
	require.NoError(t, err)
	require.Len(t, recvFiles, 2)

	var got []string
	for _, name := range sendFiles {
		data, err := os.ReadFile(name)
		require.NoError(t, err)
		got = append(got, string(data))
	}
	assert.ElementsMatch(t, []string{"first", "second"}, got)
}

func TestCreateCaptureFiles_SuffixesTakenStem(t *testing.T) {
	dir := t.TempDir()
	taken := filepath.Join(dir, "s-receive.bin")
	require.NoError(t, os.WriteFile(taken, []byte("keep"), 0o600))

	files, names, err := createCaptureFiles(dir, "s", ".bin")
	require.NoError(t, err)
	for _, f := range files {
		require.NoError(t, f.Close())
	}
	assert.Equal(t, filepath.Join(dir, "s.1-send.bin"), names[0])
	assert.Equal(t, filepath.Join(dir, "s.1-receive.bin"), names[1])

	_, err = os.Stat(filepath.Join(dir, "s-send.bin"))
	assert.True(t, os.IsNotExist(err), "partial pair must be removed")
	data, err := os.ReadFile(taken)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestTrafficCapture_Hexdump(t *testing.T) {
	dir := t.TempDir()
	p := NewTrafficCapture().(*TrafficCapture)
	require.NoError(t, p.SetProperty("OutputDir", dir))
	require.NoError(t, p.SetProperty("Hexdump", "true"))

	send, _, err := p.OpenFilters()
	require.NoError(t, err)
	send([]byte("ABC"))
	require.NoError(t, p.CloseFilters())

	files, err := filepath.Glob(filepath.Join(dir, "*-send.hex"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "41 42 43")
	assert.Contains(t, string(data), "|ABC|")
}

func TestTrafficCapture_MissingDirectory(t *testing.T) {
	p := NewTrafficCapture().(*TrafficCapture)
	require.NoError(t, p.SetProperty("OutputDir", filepath.Join(t.TempDir(), "missing")))

	_, _, err := p.OpenFilters()
	require.Error(t, err)
	assert.NoError(t, p.CloseFilters())
}

func TestBannerMatch(t *testing.T) {
	file := filepath.Join(t.TempDir(), "banner.txt")
	require.NoError(t, os.WriteFile(file, []byte("SSH-2.0-OpenSSH\n"), 0o600))

	var out bytes.Buffer
	p := NewBannerMatch().(*BannerMatch)
	p.SetIO(console.NewLayer(console.NewTerminal(strings.NewReader(""), &out, &out, true)))
	require.NoError(t, p.SetProperty("bannerfile", file))
	require.NoError(t, module.CheckRequiredProperties(p, nil))

	send, receive, err := p.OpenFilters()
	require.NoError(t, err)
	assert.Nil(t, send)
	receive([]byte("SSH-2.0-OpenSSH_9.6\r\n"))
	receive([]byte("nothing here"))

	assert.EqualValues(t, 1, p.Matches())
	assert.Contains(t, out.String(), "Banner matched (1)")
	assert.NoError(t, p.CloseFilters())
}

func TestBannerMatch_FileValidation(t *testing.T) {
	p := NewBannerMatch()
	err := module.CheckRequiredProperties(p, nil)
	require.ErrorIs(t, err, module.ErrMissingRequiredProperty)

	require.NoError(t, p.Core().SetProperty("BannerFile", filepath.Join(t.TempDir(), "none")))
	require.ErrorIs(t, module.CheckRequiredProperties(p, nil), module.ErrFileNotFound)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	require.NoError(t, p.Core().SetProperty("BannerFile", empty))
	_, _, err = p.(*BannerMatch).OpenFilters()
	require.Error(t, err)
}
