package pelican

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
)

const multistatusResponse = `<?xml version="1.0" encoding="utf-8"?>
<D:multistatus xmlns:D="DAV:">
  <D:response>
    <D:href>/ndp/climate/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
      </D:prop>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/ndp/climate/temps.nc</D:href>
    <D:propstat>
      <D:prop>
        <D:getcontentlength>1048576</D:getcontentlength>
        <D:getlastmodified>Tue, 25 Aug 2026 10:00:00 GMT</D:getlastmodified>
        <D:resourcetype/>
      </D:prop>
    </D:propstat>
  </D:response>
  <D:response>
    <D:href>/ndp/climate/archive/</D:href>
    <D:propstat>
      <D:prop>
        <D:resourcetype><D:collection/></D:resourcetype>
      </D:prop>
    </D:propstat>
  </D:response>
</D:multistatus>`

func TestListParsesMultistatus(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Method, "PROPFIND")
		is.Equal(r.Header.Get("Depth"), "1")
		w.WriteHeader(207)
		w.Write([]byte(multistatusResponse))
	}))
	defer server.Close()

	files, err := New(server.URL).List(context.Background(), "/ndp/climate")
	is.NoErr(err)
	is.Equal(len(files), 2) // the directory itself is skipped

	is.Equal(files[0].Name, "/ndp/climate/temps.nc")
	is.Equal(files[0].Type, "file")
	is.Equal(files[0].Size, int64(1048576))

	is.Equal(files[1].Name, "/ndp/climate/archive")
	is.Equal(files[1].Type, "directory")
}

func TestListNotFound(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL)

	_, err := client.List(context.Background(), "/missing")
	is.True(errors.Is(err, ErrObjectNotFound))

	_, err = client.Stat(context.Background(), "/missing.nc")
	is.True(errors.Is(err, ErrObjectNotFound))

	_, err = client.Read(context.Background(), "/missing.nc")
	is.True(errors.Is(err, ErrObjectNotFound))
}

func TestStat(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.Method, http.MethodHead)
		w.Header().Add("Content-Length", "2048")
		w.Header().Add("Last-Modified", "Tue, 25 Aug 2026 10:00:00 GMT")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	info, err := New(server.URL).Stat(context.Background(), "/ndp/climate/temps.nc")
	is.NoErr(err)
	is.Equal(info.Size, int64(2048))
	is.Equal(info.Type, "file")
}

func TestRead(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("netcdf bytes"))
	}))
	defer server.Close()

	body, err := New(server.URL).Read(context.Background(), "/ndp/climate/temps.nc")
	is.NoErr(err)
	defer body.Close()

	content, err := io.ReadAll(body)
	is.NoErr(err)
	is.Equal(string(content), "netcdf bytes")
}

func TestCheckHealth(t *testing.T) {
	is := is.New(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Path, "/.well-known/pelican-configuration")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	is.True(New(server.URL).CheckHealth(context.Background()))

	server.Close()
	is.True(!New(server.URL).CheckHealth(context.Background()))
}

func TestNewNormalizesPelicanScheme(t *testing.T) {
	is := is.New(t)
	is.Equal(New("pelican://osg-htc.org/").FederationURL(), "https://osg-htc.org")
}
