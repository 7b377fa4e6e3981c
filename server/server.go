package server

import (
	"encoding/json"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Rabder/Planning-Poker/broadcast"
	"github.com/Rabder/Planning-Poker/config"
	"github.com/Rabder/Planning-Poker/logger"
	"github.com/Rabder/Planning-Poker/monitor"
	"github.com/Rabder/Planning-Poker/network"
	"github.com/Rabder/Planning-Poker/room"
	pokerrpc "github.com/Rabder/Planning-Poker/rpc"
	"github.com/Rabder/Planning-Poker/session"
	"github.com/Rabder/Planning-Poker/timer"
)

// GameServer is the event dispatcher: it owns the transport, resolves each
// inbound action to its target room, and hands it to the room manager. The
// transport delivers a single connection's actions in order and raises the
// implicit disconnect exactly once when the connection closes.
type GameServer struct {
	cfg            *config.Config
	upgrader       websocket.Upgrader
	roomManager    *room.Manager
	sessionManager *session.Manager
	timers         *timer.TimerManager
	monitor        *monitor.Monitor
	rpcServer      *pokerrpc.Server
	shutdownChan   chan struct{}
}

func NewGameServer(cfg *config.Config, history room.HistoryRecorder) *GameServer {
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		timers:         timer.NewTimerManager(),
		monitor:        monitor.NewMonitor("planning_poker"),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	broadcaster := broadcast.NewRoomBroadcaster(s.sessionManager, s.monitor)
	window := time.Duration(cfg.Game.CountdownSeconds) * time.Second
	tick := time.Duration(cfg.Game.TickSeconds) * time.Second
	s.roomManager = room.NewManager(broadcaster, s.timers, window, tick, history)

	rpcServer, err := pokerrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	rpc.Register(pokerrpc.NewStatsService(s.roomManager, s.sessionManager))

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.cfg.Server.MetricsAddress)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncConnectedPlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	welcome, _ := json.Marshal(map[string]string{"session_id": sess.GetID()})
	if err := sess.Send(network.MsgTypeWelcome, welcome); err != nil {
		logger.Log.Warnf("Failed to send welcome to %s: %v", sess.GetID(), err)
	}

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		if sess.RoomID != "" {
			s.roomManager.Disconnect(sess.GetID(), sess.RoomID)
		}
		s.sessionManager.Remove(sess.GetID())
		s.monitor.DecConnectedPlayers()
		s.monitor.SetActiveRooms(s.roomManager.Count())
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

type joinRoomPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

type roomPayload struct {
	RoomID string `json:"room_id"`
}

type submitStoryPayload struct {
	RoomID      string `json:"room_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type selectCardPayload struct {
	RoomID string `json:"room_id"`
	Vote   string `json:"vote"`
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	s.monitor.IncActionsReceived()

	switch packet.MsgID {
	case network.MsgTypeHeartbeat:
		sess.Touch()
	case network.MsgTypeJoinRoom:
		s.handleJoinRoom(sess, packet)
	case network.MsgTypeVoteToStart:
		var req roomPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return
		}
		s.roomManager.VoteToStart(sess.GetID(), req.RoomID)
	case network.MsgTypeSubmitStory:
		var req submitStoryPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return
		}
		s.roomManager.SubmitStory(sess.GetID(), req.RoomID, req.Name, req.Description)
	case network.MsgTypeSelectCard:
		var req selectCardPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return
		}
		s.roomManager.SelectCard(sess.GetID(), req.RoomID, req.Vote)
	case network.MsgTypePlayerReady:
		var req roomPayload
		if err := json.Unmarshal(packet.Data, &req); err != nil {
			return
		}
		s.roomManager.PlayerReady(sess.GetID(), req.RoomID)
	default:
		logger.Log.Infof("Unknown message type: %d", packet.MsgID)
	}

	s.monitor.SetActiveRooms(s.roomManager.Count())
	s.monitor.ObserveActionLatency(time.Since(start))
}

func (s *GameServer) handleJoinRoom(sess *session.Session, packet *network.Packet) {
	var req joinRoomPayload
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if req.RoomID == "" || req.PlayerName == "" {
		return
	}

	// a player belongs to exactly one room at a time
	if sess.RoomID != "" && sess.RoomID != req.RoomID {
		s.roomManager.Disconnect(sess.GetID(), sess.RoomID)
	}

	sess.RoomID = req.RoomID
	sess.Name = req.PlayerName
	s.roomManager.Join(sess.GetID(), req.RoomID, req.PlayerName)
}
