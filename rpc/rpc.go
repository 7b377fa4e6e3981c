package rpc

import (
	"net"
	"net/rpc"

	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/room"
	"github.com/Rabder/Planning-Poker/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// StatsService exposes operational queries over net/rpc: exported methods,
// exported argument types, pointer reply, error return.
type StatsService struct {
	roomManager    *room.Manager
	sessionManager *session.Manager
}

func NewStatsService(rooms *room.Manager, sessions *session.Manager) *StatsService {
	return &StatsService{roomManager: rooms, sessionManager: sessions}
}

type ServerStatsArgs struct{}

type ServerStatsReply struct {
	Rooms   int
	Players int
}

// GetServerStats reports live room and player counts.
func (s *StatsService) GetServerStats(args *ServerStatsArgs, reply *ServerStatsReply) error {
	reply.Rooms = s.roomManager.Count()
	reply.Players = s.sessionManager.Count()
	return nil
}

type RoomSnapshotArgs struct {
	RoomID string
}

type RoomSnapshotReply struct {
	Found bool
	View  *room.View
}

// GetRoomSnapshot returns the current broadcast view of a room, or
// Found=false for an unknown room code.
func (s *StatsService) GetRoomSnapshot(args *RoomSnapshotArgs, reply *RoomSnapshotReply) error {
	view, found := s.roomManager.Snapshot(args.RoomID)
	reply.Found = found
	reply.View = view
	return nil
}
