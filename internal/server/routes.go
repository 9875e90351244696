package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	apierrors "github.com/zsiec/framekit/internal/errors"
	"github.com/zsiec/framekit/internal/media/codec"
	"github.com/zsiec/framekit/internal/pipeline"
	"github.com/zsiec/framekit/pkg/version"
)

// CodecResponse is one codec registry row
type CodecResponse struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Track      string `json:"track"`
	StreamType uint8  `json:"stream_type"`
	ObjectType uint8  `json:"object_type"`
}

func codecResponse(info codec.Info) CodecResponse {
	return CodecResponse{
		ID:         int(info.ID),
		Name:       info.Name,
		Track:      info.Track.String(),
		StreamType: info.StreamType,
		ObjectType: info.ObjectType,
	}
}

// StatsResponse aggregates the statistics of every stream
type StatsResponse struct {
	Streams        int    `json:"streams"`
	Running        int    `json:"running"`
	Frames         uint64 `json:"frames"`
	VideoKeyFrames uint64 `json:"video_key_frames"`
	AccessUnits    uint64 `json:"access_units"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=3600")
	s.writeJSON(w, r, http.StatusOK, version.GetInfo())
}

func (s *Server) handleCodecs(w http.ResponseWriter, r *http.Request) {
	all := codec.All()
	codecs := make([]CodecResponse, 0, len(all))
	for _, info := range all {
		codecs = append(codecs, codecResponse(info))
	}
	s.writeJSON(w, r, http.StatusOK, codecs)
}

func (s *Server) handleCodec(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	info, ok := codec.FromName(name).Info()
	if !ok {
		s.errorHandler.HandleError(w, r, apierrors.NewNotFoundError("codec").
			WithCode("UNKNOWN_CODEC").
			WithDetails(map[string]interface{}{"name": name}))
		return
	}
	s.writeJSON(w, r, http.StatusOK, codecResponse(info))
}

func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"streams": s.streams.List(),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	info, ok := s.streams.Get(id)
	if !ok {
		s.errorHandler.HandleError(w, r, apierrors.NewNotFoundError("stream").
			WithCode("UNKNOWN_STREAM").
			WithDetails(map[string]interface{}{"id": id}))
		return
	}
	s.writeJSON(w, r, http.StatusOK, info)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var resp StatsResponse
	for _, info := range s.streams.List() {
		resp.Streams++
		if info.State == pipeline.StateRunning {
			resp.Running++
		}
		resp.Frames += info.Stats.Frames
		resp.VideoKeyFrames += info.Stats.VideoKeyFrames
		resp.AccessUnits += info.Units
	}
	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		s.errorHandler.HandleError(w, r, apierrors.WrapInternalError(err, "Failed to encode response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
